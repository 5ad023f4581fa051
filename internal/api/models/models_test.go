package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/geo"
)

func ptr[T any](v T) *T { return &v }

func TestValidate_PlanRequest(t *testing.T) {
	valid := func() models.PlanRequest {
		return models.PlanRequest{
			From: &models.Point{Lat: ptr(50.45), Lon: ptr(30.5)},
			To:   &models.Point{Lat: ptr(0.0), Lon: ptr(0.0)},
		}
	}

	assert.Empty(t, models.Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*models.PlanRequest)
		field  string
		code   string
	}{
		{"missing from", func(r *models.PlanRequest) { r.From = nil }, "from", "REQUIRED"},
		{"missing to longitude", func(r *models.PlanRequest) { r.To.Lon = nil }, "to.lon", "REQUIRED"},
		{"latitude too large", func(r *models.PlanRequest) { r.From.Lat = ptr(90.5) }, "from.lat", "OUT_OF_RANGE"},
		{"longitude too small", func(r *models.PlanRequest) { r.To.Lon = ptr(-181.0) }, "to.lon", "OUT_OF_RANGE"},
		{"negative max results", func(r *models.PlanRequest) {
			r.Options = &models.PlanOptions{MaxResults: ptr(-1)}
		}, "options.maxResults", "OUT_OF_RANGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			errs := models.Validate(req)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.NotEmpty(t, errs[0].Message)
		})
	}
}

func TestValidate_ZeroCoordinateIsPresent(t *testing.T) {
	req := models.PlanRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"from":{"lat":0,"lon":0},"to":{"lat":0,"lon":0}}`), &req))
	assert.Empty(t, models.Validate(req))
}

func TestPoint_Geo(t *testing.T) {
	p := models.NewPoint(geo.Point{Lat: 50.45, Lon: 30.52})
	assert.Equal(t, geo.Point{Lat: 50.45, Lon: 30.52}, p.Geo())

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":50.45,"lon":30.52}`, string(data))
}

func TestTimestamp_JSON(t *testing.T) {
	ts := models.Timestamp(time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-04T08:00:00Z"`, string(data))

	var parsed models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-04T10:00:00+02:00"`), &parsed))
	assert.True(t, parsed.Time().Equal(ts.Time()))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`12`), &parsed))
}

func TestNewTimestamp(t *testing.T) {
	assert.Nil(t, models.NewTimestamp(nil))

	now := time.Now()
	ts := models.NewTimestamp(&now)
	require.NotNil(t, ts)
	assert.True(t, ts.Time().Equal(now))
}

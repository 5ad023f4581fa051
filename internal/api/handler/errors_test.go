package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/internal/planner"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"planner input", &planner.InputError{Field: "maxWaitMin", Reason: "must not be negative"}, http.StatusBadRequest, "options.maxWaitMinutes"},
		{"unmapped input field", &planner.InputError{Field: "walkingSpeedKmh", Reason: "must be positive"}, http.StatusBadRequest, "walkingSpeedKmh"},
		{"deviation input", fmt.Errorf("%w: fleet number is required", deviation.ErrInvalidInput), http.StatusBadRequest, ""},
		{"route not found", fmt.Errorf("%w: route-9", network.ErrRouteNotFound), http.StatusNotFound, ""},
		{"vehicle not found", fmt.Errorf("%w: 9999", deviation.ErrVehicleNotFound), http.StatusNotFound, ""},
		{"no snapshot", network.ErrNoSnapshot, http.StatusServiceUnavailable, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), zerolog.Nop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.status, problem.Status)
			if tt.field != "" {
				require.Len(t, problem.Errors, 1)
				assert.Equal(t, tt.field, problem.Errors[0].Field)
			}
		})
	}
}

func TestWriteError_CanceledWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), zerolog.Nop(), context.Canceled)
	assert.Zero(t, rec.Body.Len())
}

// Package models provides request and response models for the transit engine API.
package models

import (
	"time"

	"github.com/citytransit/transitengine/internal/geo"
)

// Point represents a geographic coordinate. Pointers distinguish a missing
// coordinate from 0.
type Point struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// NewPoint converts a geo.Point to its API form.
func NewPoint(p geo.Point) Point {
	lat, lon := p.Lat, p.Lon
	return Point{Lat: &lat, Lon: &lon}
}

// Geo converts a validated Point to a geo.Point.
func (p Point) Geo() geo.Point {
	var out geo.Point
	if p.Lat != nil {
		out.Lat = *p.Lat
	}
	if p.Lon != nil {
		out.Lon = *p.Lon
	}
	return out
}

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a helper type for time.Time with RFC3339 JSON formatting.
type Timestamp time.Time

// NewTimestamp returns a pointer Timestamp, or nil for a nil time.
func NewTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return &time.ParseError{Layout: time.RFC3339, Value: string(data), Message: ": expected a quoted timestamp"}
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

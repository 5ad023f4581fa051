// Package planner composes the network snapshot and synthesized timetables into
// journey options between two coordinates.
package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
)

// ErrInvalidInput is returned for malformed requests.
var ErrInvalidInput = errors.New("invalid input")

// InputError names the offending request field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// Options tune a single planning request. Zero values take the configured defaults.
type Options struct {
	// RadiusMeters bounds the stop search around each endpoint.
	RadiusMeters float64

	// MaxWaitMin drops itineraries whose first wait exceeds it. Nil is unrestricted.
	MaxWaitMin *float64

	// MaxResults caps the number of returned options.
	MaxResults int

	// MaxFirstLegMinutes bounds how far along the first route transfers are explored.
	MaxFirstLegMinutes float64

	// MaxWalkMeters caps each walking leg independently of the radius. Zero means the
	// radius is the only bound.
	MaxWalkMeters float64

	// WalkingSpeedKmh is the assumed walking speed.
	WalkingSpeedKmh float64
}

// Request is a journey planning query.
type Request struct {
	From    geo.Point
	To      geo.Point
	At      time.Time
	Options Options
}

// StopRef identifies a stop within a segment.
type StopRef struct {
	ID      string
	Name    string
	Ordinal int
	Point   geo.Point
}

// Segment is one ride on a single directional route.
type Segment struct {
	RouteID       string
	RouteNumber   string
	TransportType string
	Direction     network.Direction
	From          StopRef
	To            StopRef
	DistanceKm    float64
	TravelMinutes float64
	// WaitMinutes is the wait at From before boarding.
	WaitMinutes float64
	Departure   time.Time
	Arrival     time.Time

	wait, ride time.Duration
}

// Walk is a straight-line walking leg.
type Walk struct {
	DistanceMeters float64
	Minutes        float64

	duration time.Duration
}

// RouteOption is one itinerary.
type RouteOption struct {
	Segments        []Segment
	WalkToStop      *Walk
	WalkFromStop    *Walk
	Transfers       int
	TotalMinutes    float64
	TotalDistanceKm float64
	// Departure is the first boarding, Arrival the arrival at the destination point.
	Departure time.Time
	Arrival   time.Time

	total time.Duration
	key   string
}

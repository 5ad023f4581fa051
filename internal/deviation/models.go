// Package deviation compares live vehicle positions with the synthesized timetable.
package deviation

import (
	"context"
	"errors"
	"time"

	"github.com/citytransit/transitengine/internal/network"
)

// Deviation errors.
var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Status is the schedule adherence classification.
type Status string

// Statuses.
const (
	StatusOnTime  Status = "on_time"
	StatusEarly   Status = "early"
	StatusLate    Status = "late"
	StatusUnknown Status = "unknown"
)

// State is where evaluation stopped.
type State string

// States. Every state except StateEvaluated reports StatusUnknown.
const (
	StateNoAssignment State = "no_assignment"
	StateNoRecentFix  State = "no_recent_fix"
	StateNoSchedule   State = "no_schedule"
	StateOffRoute     State = "off_route"
	StateEvaluated    State = "evaluated"
)

// TripMatching selects which departure a vehicle's position is compared against.
type TripMatching string

// Trip matching rules.
const (
	TripMatchLatest          TripMatching = "latest"
	TripMatchNearestProgress TripMatching = "nearest_progress"
)

// FixSource provides the most recent GPS fix of a vehicle.
type FixSource interface {
	// LatestFix returns ok=false when the vehicle has never reported.
	LatestFix(ctx context.Context, vehicleID string) (network.GpsFix, bool, error)
}

// StopRef identifies a stop on the evaluated route.
type StopRef struct {
	ID      string
	Name    string
	Ordinal int
}

// Result is the outcome of one deviation check.
type Result struct {
	FleetNumber   string
	VehicleID     string
	RouteID       string
	AssignmentRef string

	// TripRef names the matched trip as route@departure.
	TripRef       string
	TripDeparture *time.Time

	Status       Status
	State        State
	DelayMinutes *float64
	EvaluatedAt  time.Time

	Fix            *network.GpsFix
	OffsetMeters   *float64
	ExpectedStop   *StopRef
	LastPassedStop *StopRef
}

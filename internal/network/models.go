// Package network holds the immutable snapshot of stops, routes and timetables that
// planning and deviation queries run against.
package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
)

// Network errors.
var (
	ErrInvalidSegment = errors.New("invalid segment")
	ErrRouteNotFound  = errors.New("route not found")
	ErrStopNotFound   = errors.New("stop not found")
	ErrNoSnapshot     = errors.New("network snapshot not loaded")
)

// Direction is the travel direction of a directional route instance.
type Direction string

// Directions.
const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// ParseDirection parses "forward" or "reverse". An empty string yields "".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "", DirectionForward, DirectionReverse:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Stop is a boarding point.
type Stop struct {
	ID    string
	Name  string
	Point geo.Point
}

// TransportType is a vehicle class such as bus or tram.
type TransportType struct {
	ID   string
	Name string
}

// Route is one direction of a line. The two directions of a line are separate
// records sharing Number and TransportTypeID.
type Route struct {
	ID              string
	Number          string
	TransportTypeID string
	Direction       Direction
	Active          bool
}

// RouteStop places a stop on a route.
type RouteStop struct {
	RouteID          string
	StopID           string
	Ordinal          int
	DistanceToNextKm *float64
}

// RoutePoint is a vertex of a route's geometry.
type RoutePoint struct {
	RouteID  string
	Sequence int
	Point    geo.Point
}

// TimeOfDay is a wall-clock offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		total += time.Duration(n) * units[i]
	}
	return TimeOfDay(total), nil
}

// String renders the time as HH:MM or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// On returns the wall-clock instant of t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	sec := int(time.Duration(t) / time.Second)
	return time.Date(y, m, d, 0, 0, sec, 0, date.Location())
}

// Schedule is an interval timetable for a route.
type Schedule struct {
	ID          string
	RouteID     string
	WorkStart   TimeOfDay
	WorkEnd     TimeOfDay
	IntervalMin int
	// Weekdays is indexed by time.Weekday (Sunday = 0).
	Weekdays  [7]bool
	ValidFrom *time.Time
	ValidTo   *time.Time
	CreatedAt time.Time
}

// Valid reports whether the schedule can produce departures at all.
func (s Schedule) Valid() error {
	if s.IntervalMin < 1 {
		return fmt.Errorf("interval %d min is below 1", s.IntervalMin)
	}
	if s.WorkEnd < s.WorkStart {
		return fmt.Errorf("work end %s precedes work start %s", s.WorkEnd, s.WorkStart)
	}
	return nil
}

// RunsOn reports whether the schedule is in service on the calendar day of date.
// The validity window is inclusive and compared by calendar day.
func (s Schedule) RunsOn(date time.Time) bool {
	if !s.Weekdays[date.Weekday()] {
		return false
	}
	day := dateKey(date)
	if s.ValidFrom != nil && day < dateKey(*s.ValidFrom) {
		return false
	}
	if s.ValidTo != nil && day > dateKey(*s.ValidTo) {
		return false
	}
	return true
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Vehicle is a fleet vehicle.
type Vehicle struct {
	ID          string
	FleetNumber string
	RouteID     *string
	Capacity    int
}

// Assignment binds a driver and vehicle to a route.
type Assignment struct {
	ID         string
	VehicleID  string
	DriverID   string
	RouteID    string
	AssignedAt time.Time
}

// GpsFix is a reported vehicle position.
type GpsFix struct {
	VehicleID  string
	Point      geo.Point
	RecordedAt time.Time
}

// Data is the raw network as loaded from the store.
type Data struct {
	Stops          []Stop
	TransportTypes []TransportType
	Routes         []Route
	RouteStops     []RouteStop
	RoutePoints    []RoutePoint
	Schedules      []Schedule
	Vehicles       []Vehicle
	Assignments    []Assignment
}

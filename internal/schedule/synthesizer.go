// Package schedule turns interval timetables into concrete departure and arrival times.
package schedule

import (
	"iter"
	"slices"
	"sort"
	"time"

	"github.com/citytransit/transitengine/internal/network"
)

// Synthesizer derives clock times from the schedules of one snapshot. Service dates
// and clock times are interpreted in the configured location.
type Synthesizer struct {
	snap *network.Snapshot
	loc  *time.Location
}

// New creates a synthesizer over snap. A nil location means time.Local.
func New(snap *network.Snapshot, loc *time.Location) *Synthesizer {
	if loc == nil {
		loc = time.Local
	}
	return &Synthesizer{snap: snap, loc: loc}
}

// Location returns the time zone service dates are evaluated in.
func (s *Synthesizer) Location() *time.Location {
	return s.loc
}

// ServiceDate returns local midnight of the calendar day t falls on.
func (s *Synthesizer) ServiceDate(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// Departure is one trip's departure from the first stop and its expected time at
// the stop that was asked about.
type Departure struct {
	Origin time.Time
	AtStop time.Time
}

// ScheduleFor selects the schedule in effect for the route on date: the most
// recently created one whose weekday flag and validity window admit the date.
func (s *Synthesizer) ScheduleFor(routeID string, dir network.Direction, date time.Time) (*network.Route, *network.Schedule, error) {
	r, err := s.snap.ResolveRoute(routeID, dir)
	if err != nil {
		return nil, nil, err
	}
	day := s.ServiceDate(date)
	for _, sch := range s.snap.Schedules(r.ID) {
		if sch.RunsOn(day) {
			return r, &sch, nil
		}
	}
	return r, nil, nil
}

// DeparturesFor yields departures from the first stop on the service date of date,
// from work start to work end inclusive. The sequence is empty when no schedule
// runs that day and may be iterated any number of times.
func (s *Synthesizer) DeparturesFor(routeID string, dir network.Direction, date time.Time) (iter.Seq[time.Time], error) {
	_, sch, err := s.ScheduleFor(routeID, dir, date)
	if err != nil {
		return nil, err
	}
	if sch == nil {
		return func(func(time.Time) bool) {}, nil
	}

	day := s.ServiceDate(date)
	start, end := time.Duration(sch.WorkStart), time.Duration(sch.WorkEnd)
	step := time.Duration(sch.IntervalMin) * time.Minute

	return func(yield func(time.Time) bool) {
		for t := start; t <= end; t += step {
			if !yield(network.TimeOfDay(t).On(day)) {
				return
			}
		}
	}, nil
}

// Departures collects DeparturesFor into a slice.
func (s *Synthesizer) Departures(routeID string, dir network.Direction, date time.Time) ([]time.Time, error) {
	seq, err := s.DeparturesFor(routeID, dir, date)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// ArrivalOffsetAtStop returns the travel time from the first stop to ordinal.
func (s *Synthesizer) ArrivalOffsetAtStop(routeID string, dir network.Direction, ordinal int) (time.Duration, error) {
	return s.snap.ArrivalOffset(routeID, dir, ordinal)
}

// DeparturesAtStop returns the expected times at the stop at ordinal for every trip
// of the service date.
func (s *Synthesizer) DeparturesAtStop(routeID string, dir network.Direction, ordinal int, date time.Time) ([]time.Time, error) {
	offset, err := s.ArrivalOffsetAtStop(routeID, dir, ordinal)
	if err != nil {
		return nil, err
	}
	deps, err := s.Departures(routeID, dir, date)
	if err != nil {
		return nil, err
	}
	for i := range deps {
		deps[i] = deps[i].Add(offset)
	}
	return deps, nil
}

// NextDepartureAtOrAfter finds the first trip of from's service date that reaches
// the stop at ordinal no earlier than from. ok is false when the last trip has
// already passed.
func (s *Synthesizer) NextDepartureAtOrAfter(routeID string, dir network.Direction, ordinal int, from time.Time) (Departure, bool, error) {
	offset, err := s.ArrivalOffsetAtStop(routeID, dir, ordinal)
	if err != nil {
		return Departure{}, false, err
	}
	deps, err := s.Departures(routeID, dir, from)
	if err != nil {
		return Departure{}, false, err
	}

	i := sort.Search(len(deps), func(i int) bool {
		return !deps[i].Add(offset).Before(from)
	})
	if i == len(deps) {
		return Departure{}, false, nil
	}
	return Departure{Origin: deps[i], AtStop: deps[i].Add(offset)}, true, nil
}

// StopTime is a stop's position in a timetable.
type StopTime struct {
	StopID   string
	StopName string
	Ordinal  int
	Offset   time.Duration
}

// Timetable is the synthesized service of one directional route on one date.
type Timetable struct {
	Route       *network.Route
	ServiceDate time.Time
	Schedule    *network.Schedule
	Stops       []StopTime
	// Departures are from the first stop, Arrivals at the last stop.
	Departures []time.Time
	Arrivals   []time.Time
}

// Synthesize builds the full timetable for a route and date. A route with no
// schedule in effect yields an empty timetable.
func (s *Synthesizer) Synthesize(routeID string, dir network.Direction, date time.Time) (*Timetable, error) {
	r, sch, err := s.ScheduleFor(routeID, dir, date)
	if err != nil {
		return nil, err
	}
	stops, err := s.snap.StopsOnRoute(r.ID, r.Direction)
	if err != nil {
		return nil, err
	}
	offsets, err := s.snap.Offsets(r.ID, r.Direction)
	if err != nil {
		return nil, err
	}

	tt := &Timetable{
		Route:       r,
		ServiceDate: s.ServiceDate(date),
		Schedule:    sch,
		Stops:       make([]StopTime, len(stops)),
		Departures:  []time.Time{},
		Arrivals:    []time.Time{},
	}
	for i, rs := range stops {
		st := StopTime{StopID: rs.StopID, Ordinal: rs.Ordinal, Offset: offsets[i]}
		if stop, ok := s.snap.Stop(rs.StopID); ok {
			st.StopName = stop.Name
		}
		tt.Stops[i] = st
	}

	if sch == nil {
		return tt, nil
	}
	if tt.Departures, err = s.Departures(r.ID, r.Direction, date); err != nil {
		return nil, err
	}

	var total time.Duration
	if n := len(offsets); n > 0 {
		total = offsets[n-1]
	}
	tt.Arrivals = make([]time.Time, len(tt.Departures))
	for i, d := range tt.Departures {
		tt.Arrivals[i] = d.Add(total)
	}
	return tt, nil
}

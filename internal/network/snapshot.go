package network

import (
	"fmt"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
)

// RouteAt is a route passing a stop at a given ordinal.
type RouteAt struct {
	RouteID string
	Ordinal int
}

// StopHit is a stop found by a spatial query.
type StopHit struct {
	Stop           *Stop
	DistanceMeters float64
}

// Snapshot is an immutable view of the network. All methods are safe for
// concurrent use; returned slices must not be modified.
type Snapshot struct {
	Version int64
	BuiltAt time.Time

	stops          map[string]*Stop
	stopIDs        []string
	transportTypes map[string]TransportType
	routes         map[string]*Route
	routeIDs       []string
	routeStops     map[string][]RouteStop
	legKm          map[string][]float64
	offsets        map[string][]time.Duration
	geometry       map[string][]geo.Point
	schedules      map[string][]Schedule
	serving        map[string][]RouteAt
	siblings       map[siblingKey]string
	speeds         map[string]float64
	vehicles       map[string]*Vehicle
	byFleet        map[string]*Vehicle
	fleetNumbers   []string
	assignments    map[string]Assignment
	index          *geo.Index
}

// Stop returns a stop by id.
func (s *Snapshot) Stop(id string) (*Stop, bool) {
	st, ok := s.stops[id]
	return st, ok
}

// StopCount returns the number of stops.
func (s *Snapshot) StopCount() int {
	return len(s.stopIDs)
}

// Route returns a route by id.
func (s *Snapshot) Route(id string) (*Route, bool) {
	r, ok := s.routes[id]
	return r, ok
}

// Routes returns all routes ordered by id.
func (s *Snapshot) Routes() []*Route {
	out := make([]*Route, 0, len(s.routeIDs))
	for _, id := range s.routeIDs {
		out = append(out, s.routes[id])
	}
	return out
}

// TransportTypeName returns the name of the route's transport type, or "" if unknown.
func (s *Snapshot) TransportTypeName(r *Route) string {
	return s.transportTypes[r.TransportTypeID].Name
}

// SpeedKmh returns the average speed applied to the route.
func (s *Snapshot) SpeedKmh(routeID string) float64 {
	return s.speeds[routeID]
}

// ResolveRoute returns the directional instance of routeID travelling in dir.
// When the route runs the other way its sibling (same number and transport type)
// is returned. An empty dir accepts the route as is.
func (s *Snapshot) ResolveRoute(routeID string, dir Direction) (*Route, error) {
	r, ok := s.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	if dir == "" || r.Direction == dir {
		return r, nil
	}
	id, ok := s.siblings[siblingKey{number: r.Number, transportTypeID: r.TransportTypeID, direction: dir}]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %s direction", ErrRouteNotFound, routeID, dir)
	}
	return s.routes[id], nil
}

// RoutesServingStop returns active routes calling at the stop with the stop's
// ordinal on each, ordered by route id.
func (s *Snapshot) RoutesServingStop(stopID string) []RouteAt {
	all := s.serving[stopID]
	out := make([]RouteAt, 0, len(all))
	for _, ra := range all {
		if s.routes[ra.RouteID].Active {
			out = append(out, ra)
		}
	}
	return out
}

// StopsOnRoute returns the ordered stop sequence of the directional route.
func (s *Snapshot) StopsOnRoute(routeID string, dir Direction) ([]RouteStop, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return nil, err
	}
	return s.routeStops[r.ID], nil
}

// SegmentTravelTime returns the ride time between two ordinals of the route.
// Fails with ErrInvalidSegment unless from < to and both are on the route.
func (s *Snapshot) SegmentTravelTime(routeID string, dir Direction, from, to int) (time.Duration, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return 0, err
	}
	offsets := s.offsets[r.ID]
	if from < 0 || from >= to || to >= len(offsets) {
		return 0, fmt.Errorf("%w: route %s ordinals %d->%d", ErrInvalidSegment, r.ID, from, to)
	}
	return offsets[to] - offsets[from], nil
}

// SegmentDistanceKm returns the ridden distance between two ordinals.
func (s *Snapshot) SegmentDistanceKm(routeID string, dir Direction, from, to int) (float64, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return 0, err
	}
	legs := s.legKm[r.ID]
	if from < 0 || from >= to || to > len(legs) {
		return 0, fmt.Errorf("%w: route %s ordinals %d->%d", ErrInvalidSegment, r.ID, from, to)
	}
	var km float64
	for _, l := range legs[from:to] {
		km += l
	}
	return km, nil
}

// ArrivalOffset returns the travel time from the first stop to the stop at ordinal.
func (s *Snapshot) ArrivalOffset(routeID string, dir Direction, ordinal int) (time.Duration, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return 0, err
	}
	offsets := s.offsets[r.ID]
	if ordinal < 0 || ordinal >= len(offsets) {
		return 0, fmt.Errorf("%w: route %s has no ordinal %d", ErrStopNotFound, r.ID, ordinal)
	}
	return offsets[ordinal], nil
}

// Offsets returns the arrival offset of every stop on the route, indexed by ordinal.
func (s *Snapshot) Offsets(routeID string, dir Direction) ([]time.Duration, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return nil, err
	}
	return s.offsets[r.ID], nil
}

// RouteGeometry returns the route's line, or its stop coordinates when no
// geometry was stored.
func (s *Snapshot) RouteGeometry(routeID string, dir Direction) ([]geo.Point, error) {
	r, err := s.ResolveRoute(routeID, dir)
	if err != nil {
		return nil, err
	}
	return s.geometry[r.ID], nil
}

// Schedules returns the route's valid schedules, most recently created first.
func (s *Snapshot) Schedules(routeID string) []Schedule {
	return s.schedules[routeID]
}

// StopsWithinRadius returns stops within radiusMeters of p, nearest first.
func (s *Snapshot) StopsWithinRadius(p geo.Point, radiusMeters float64) []StopHit {
	hits := s.index.WithinRadius(p, radiusMeters)
	out := make([]StopHit, len(hits))
	for i, h := range hits {
		out[i] = StopHit{Stop: s.stops[h.ID], DistanceMeters: h.DistanceMeters}
	}
	return out
}

// NearestStop returns the stop closest to p. ok is false when there are no stops.
func (s *Snapshot) NearestStop(p geo.Point) (StopHit, bool) {
	h, ok := s.index.Nearest(p)
	if !ok {
		return StopHit{}, false
	}
	return StopHit{Stop: s.stops[h.ID], DistanceMeters: h.DistanceMeters}, true
}

// VehicleByFleetNumber looks up a vehicle by its fleet number.
func (s *Snapshot) VehicleByFleetNumber(fleetNumber string) (*Vehicle, bool) {
	v, ok := s.byFleet[fleetNumber]
	return v, ok
}

// Vehicles returns all vehicles ordered by fleet number.
func (s *Snapshot) Vehicles() []*Vehicle {
	out := make([]*Vehicle, 0, len(s.fleetNumbers))
	for _, fn := range s.fleetNumbers {
		out = append(out, s.byFleet[fn])
	}
	return out
}

// CurrentAssignment returns the latest assignment of the vehicle.
func (s *Snapshot) CurrentAssignment(vehicleID string) (Assignment, bool) {
	a, ok := s.assignments[vehicleID]
	return a, ok
}

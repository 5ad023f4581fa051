package network

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
)

// minLegTravel keeps travel between two distinct stops strictly positive even when
// they share a coordinate.
const minLegTravel = time.Second

// BuildOptions controls snapshot derivation.
type BuildOptions struct {
	// SpeedsKmh maps lower-case transport type names to average speeds.
	SpeedsKmh map[string]float64

	// DefaultSpeedKmh applies to transport types missing from SpeedsKmh.
	DefaultSpeedKmh float64

	// Now stamps BuiltAt. Defaults to time.Now.
	Now func() time.Time
}

// DefaultBuildOptions returns the standard speeds.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		SpeedsKmh: map[string]float64{
			"bus":        20,
			"tram":       18,
			"trolleybus": 18,
		},
		DefaultSpeedKmh: 20,
	}
}

// Issue describes an input row that was dropped or repaired while building.
type Issue struct {
	Kind    string
	Ref     string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.Ref, i.Message)
}

type siblingKey struct {
	number          string
	transportTypeID string
	direction       Direction
}

// Build derives an immutable Snapshot from raw data. Inconsistent rows are dropped
// and reported as issues rather than failing the build.
func Build(data *Data, opts BuildOptions) (*Snapshot, []Issue) {
	if data == nil {
		data = &Data{}
	}
	if opts.DefaultSpeedKmh <= 0 {
		opts.DefaultSpeedKmh = DefaultBuildOptions().DefaultSpeedKmh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &builder{
		opts: opts,
		snap: &Snapshot{
			BuiltAt:        opts.Now(),
			stops:          make(map[string]*Stop, len(data.Stops)),
			transportTypes: make(map[string]TransportType, len(data.TransportTypes)),
			routes:         make(map[string]*Route, len(data.Routes)),
			routeStops:     make(map[string][]RouteStop),
			offsets:        make(map[string][]time.Duration),
			legKm:          make(map[string][]float64),
			geometry:       make(map[string][]geo.Point),
			schedules:      make(map[string][]Schedule),
			serving:        make(map[string][]RouteAt),
			siblings:       make(map[siblingKey]string),
			speeds:         make(map[string]float64),
			vehicles:       make(map[string]*Vehicle, len(data.Vehicles)),
			byFleet:        make(map[string]*Vehicle, len(data.Vehicles)),
			assignments:    make(map[string]Assignment),
		},
	}

	b.stops(data.Stops)
	b.transportTypes(data.TransportTypes)
	b.routes(data.Routes)
	b.routeStops(data.RouteStops)
	b.geometry(data.RoutePoints)
	b.schedules(data.Schedules)
	b.vehicles(data.Vehicles, data.Assignments)

	return b.snap, b.issues
}

type builder struct {
	opts   BuildOptions
	snap   *Snapshot
	issues []Issue
}

func (b *builder) issue(kind, ref, format string, args ...any) {
	b.issues = append(b.issues, Issue{Kind: kind, Ref: ref, Message: fmt.Sprintf(format, args...)})
}

func (b *builder) stops(stops []Stop) {
	entries := make([]geo.Entry, 0, len(stops))
	for i := range stops {
		s := stops[i]
		if _, dup := b.snap.stops[s.ID]; dup {
			b.issue("stop", s.ID, "duplicate id")
			continue
		}
		if !geo.Valid(s.Point) {
			b.issue("stop", s.ID, "invalid coordinate %.6f,%.6f", s.Point.Lat, s.Point.Lon)
			continue
		}
		b.snap.stops[s.ID] = &s
		b.snap.stopIDs = append(b.snap.stopIDs, s.ID)
		entries = append(entries, geo.Entry{ID: s.ID, Point: s.Point})
	}
	sort.Strings(b.snap.stopIDs)
	b.snap.index = geo.NewIndex(entries)
}

func (b *builder) transportTypes(types []TransportType) {
	for _, t := range types {
		b.snap.transportTypes[t.ID] = t
	}
}

func (b *builder) routes(routes []Route) {
	for i := range routes {
		r := routes[i]
		if _, dup := b.snap.routes[r.ID]; dup {
			b.issue("route", r.ID, "duplicate id")
			continue
		}
		if r.Direction == "" {
			r.Direction = DirectionForward
		}
		if r.Direction != DirectionForward && r.Direction != DirectionReverse {
			b.issue("route", r.ID, "unknown direction %q", r.Direction)
			continue
		}
		b.snap.routes[r.ID] = &r
		b.snap.routeIDs = append(b.snap.routeIDs, r.ID)
		b.snap.speeds[r.ID] = b.speedFor(&r)
	}
	sort.Strings(b.snap.routeIDs)

	// Sibling lookup goes in id order so collisions resolve deterministically.
	for _, id := range b.snap.routeIDs {
		r := b.snap.routes[id]
		key := siblingKey{number: r.Number, transportTypeID: r.TransportTypeID, direction: r.Direction}
		if other, taken := b.snap.siblings[key]; taken {
			b.issue("route", id, "shares number %s and direction with %s", r.Number, other)
			continue
		}
		b.snap.siblings[key] = id
	}
}

func (b *builder) speedFor(r *Route) float64 {
	tt, ok := b.snap.transportTypes[r.TransportTypeID]
	if !ok {
		b.issue("route", r.ID, "unknown transport type %q, using default speed", r.TransportTypeID)
		return b.opts.DefaultSpeedKmh
	}
	if v, ok := b.opts.SpeedsKmh[strings.ToLower(tt.Name)]; ok && v > 0 {
		return v
	}
	return b.opts.DefaultSpeedKmh
}

func (b *builder) routeStops(rows []RouteStop) {
	grouped := make(map[string][]RouteStop)
	for _, rs := range rows {
		if _, ok := b.snap.routes[rs.RouteID]; !ok {
			b.issue("route_stop", rs.RouteID+"/"+rs.StopID, "unknown route")
			continue
		}
		if _, ok := b.snap.stops[rs.StopID]; !ok {
			b.issue("route_stop", rs.RouteID+"/"+rs.StopID, "unknown stop")
			continue
		}
		if rs.DistanceToNextKm != nil && (*rs.DistanceToNextKm < 0 || math.IsNaN(*rs.DistanceToNextKm)) {
			b.issue("route_stop", rs.RouteID+"/"+rs.StopID, "negative distance ignored")
			rs.DistanceToNextKm = nil
		}
		grouped[rs.RouteID] = append(grouped[rs.RouteID], rs)
	}

	for routeID, list := range grouped {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })

		legs := make([]float64, 0, len(list))
		offsets := make([]time.Duration, len(list))
		speed := b.snap.speeds[routeID]
		for i := range list {
			list[i].Ordinal = i
			if i == len(list)-1 {
				break
			}
			km := b.legDistanceKm(list[i], list[i+1])
			legs = append(legs, km)
			offsets[i+1] = offsets[i] + legTravel(km, speed)
		}
		for _, rs := range list {
			b.snap.serving[rs.StopID] = append(b.snap.serving[rs.StopID], RouteAt{RouteID: routeID, Ordinal: rs.Ordinal})
		}

		b.snap.routeStops[routeID] = list
		b.snap.legKm[routeID] = legs
		b.snap.offsets[routeID] = offsets
	}

	for stopID, list := range b.snap.serving {
		sort.Slice(list, func(i, j int) bool {
			if list[i].RouteID != list[j].RouteID {
				return list[i].RouteID < list[j].RouteID
			}
			return list[i].Ordinal < list[j].Ordinal
		})
		b.snap.serving[stopID] = list
	}
}

// legDistanceKm prefers the stored distance and falls back to the straight line.
func (b *builder) legDistanceKm(from, to RouteStop) float64 {
	if from.DistanceToNextKm != nil {
		return *from.DistanceToNextKm
	}
	return geo.Distance(b.snap.stops[from.StopID].Point, b.snap.stops[to.StopID].Point) / 1000
}

func legTravel(km, speedKmh float64) time.Duration {
	d := time.Duration(km / speedKmh * float64(time.Hour)).Round(time.Second)
	if d < minLegTravel {
		return minLegTravel
	}
	return d
}

func (b *builder) geometry(points []RoutePoint) {
	grouped := make(map[string][]RoutePoint)
	for _, p := range points {
		if _, ok := b.snap.routes[p.RouteID]; !ok {
			continue
		}
		if !geo.Valid(p.Point) {
			b.issue("route_point", p.RouteID, "invalid coordinate at sequence %d", p.Sequence)
			continue
		}
		grouped[p.RouteID] = append(grouped[p.RouteID], p)
	}

	for _, routeID := range b.snap.routeIDs {
		pts := grouped[routeID]
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Sequence < pts[j].Sequence })

		var line []geo.Point
		if len(pts) >= 2 {
			line = make([]geo.Point, len(pts))
			for i, p := range pts {
				line[i] = p.Point
			}
		} else {
			// Without usable geometry the stop sequence stands in for the line.
			for _, rs := range b.snap.routeStops[routeID] {
				line = append(line, b.snap.stops[rs.StopID].Point)
			}
		}
		b.snap.geometry[routeID] = line
	}
}

func (b *builder) schedules(rows []Schedule) {
	for _, s := range rows {
		if _, ok := b.snap.routes[s.RouteID]; !ok {
			b.issue("schedule", s.ID, "unknown route %q", s.RouteID)
			continue
		}
		if err := s.Valid(); err != nil {
			b.issue("schedule", s.ID, "%v", err)
			continue
		}
		b.snap.schedules[s.RouteID] = append(b.snap.schedules[s.RouteID], s)
	}

	// Most recently created first so selection can take the first match.
	for routeID, list := range b.snap.schedules {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.After(list[j].CreatedAt)
			}
			return list[i].ID < list[j].ID
		})
		b.snap.schedules[routeID] = list
	}
}

func (b *builder) vehicles(vehicles []Vehicle, assignments []Assignment) {
	for i := range vehicles {
		v := vehicles[i]
		if _, dup := b.snap.vehicles[v.ID]; dup {
			b.issue("vehicle", v.ID, "duplicate id")
			continue
		}
		if _, dup := b.snap.byFleet[v.FleetNumber]; dup {
			b.issue("vehicle", v.ID, "duplicate fleet number %s", v.FleetNumber)
			continue
		}
		b.snap.vehicles[v.ID] = &v
		b.snap.byFleet[v.FleetNumber] = &v
		b.snap.fleetNumbers = append(b.snap.fleetNumbers, v.FleetNumber)
	}
	sort.Strings(b.snap.fleetNumbers)

	for _, a := range assignments {
		if _, ok := b.snap.vehicles[a.VehicleID]; !ok {
			b.issue("assignment", a.ID, "unknown vehicle %q", a.VehicleID)
			continue
		}
		if _, ok := b.snap.routes[a.RouteID]; !ok {
			b.issue("assignment", a.ID, "unknown route %q", a.RouteID)
			continue
		}
		if cur, ok := b.snap.assignments[a.VehicleID]; ok && !a.AssignedAt.After(cur.AssignedAt) {
			continue
		}
		b.snap.assignments[a.VehicleID] = a
	}
}

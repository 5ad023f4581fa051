package deviation

import (
	"fmt"
	"sort"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	"github.com/citytransit/transitengine/pkg/polyline"
)

// track maps arc-length positions on a route's geometry to nominal elapsed time.
type track struct {
	line    []geo.Point
	stops   []network.RouteStop
	offsets []time.Duration
	// arcs holds each stop's position along line, non-decreasing.
	arcs []float64
}

func newTrack(snap *network.Snapshot, route *network.Route) (*track, error) {
	stops, err := snap.StopsOnRoute(route.ID, route.Direction)
	if err != nil {
		return nil, err
	}
	offsets, err := snap.Offsets(route.ID, route.Direction)
	if err != nil {
		return nil, err
	}
	line, err := snap.RouteGeometry(route.ID, route.Direction)
	if err != nil {
		return nil, err
	}
	if len(stops) < 2 || len(line) < 2 {
		return nil, fmt.Errorf("route %s has no usable geometry", route.ID)
	}

	arcs := make([]float64, len(stops))
	for i, rs := range stops {
		st, _ := snap.Stop(rs.StopID)
		p, _ := polyline.Project(line, st.Point)
		arcs[i] = p.AlongMeters
		// A stop projecting behind its predecessor is pinned to it.
		if i > 0 && arcs[i] < arcs[i-1] {
			arcs[i] = arcs[i-1]
		}
	}

	return &track{line: line, stops: stops, offsets: offsets, arcs: arcs}, nil
}

func (t *track) total() time.Duration {
	return t.offsets[len(t.offsets)-1]
}

// elapsedAt interpolates the nominal elapsed time at arc position along and
// returns it with the ordinal of the last stop at or behind that position.
func (t *track) elapsedAt(along float64) (time.Duration, int) {
	n := len(t.arcs)
	if along <= t.arcs[0] {
		return 0, 0
	}
	if along >= t.arcs[n-1] {
		return t.offsets[n-1], n - 1
	}

	// First stop strictly ahead of the vehicle.
	next := sort.Search(n, func(i int) bool { return t.arcs[i] > along })
	prev := next - 1

	span := t.arcs[next] - t.arcs[prev]
	if span <= 0 {
		return t.offsets[prev], prev
	}
	frac := (along - t.arcs[prev]) / span
	leg := t.offsets[next] - t.offsets[prev]
	return t.offsets[prev] + time.Duration(frac*float64(leg)), prev
}

// ordinalAt returns the stop whose scheduled window brackets elapsed.
func (t *track) ordinalAt(elapsed time.Duration) int {
	i := sort.Search(len(t.offsets), func(i int) bool { return t.offsets[i] > elapsed })
	if i == 0 {
		return 0
	}
	return i - 1
}

func (t *track) stopRef(snap *network.Snapshot, ordinal int) *StopRef {
	rs := t.stops[ordinal]
	ref := &StopRef{ID: rs.StopID, Ordinal: rs.Ordinal}
	if st, ok := snap.Stop(rs.StopID); ok {
		ref.Name = st.Name
	}
	return ref
}

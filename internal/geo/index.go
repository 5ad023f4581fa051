// Package geo provides the in-memory spatial lookup over stops.
package geo

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/citytransit/transitengine/pkg/polyline"
)

// Point is a WGS84 coordinate.
type Point = polyline.Coordinate

// metersPerDegreeLat is the length of one degree of latitude on the sphere used
// by Distance.
const metersPerDegreeLat = polyline.EarthRadiusMeters * math.Pi / 180

// boxPadding widens the search box so the great-circle check, not the box, decides
// membership near the edge of the radius.
const boxPadding = 1.01

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return polyline.Distance(a, b)
}

// Valid reports whether p is a usable coordinate.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Entry is an indexed item.
type Entry struct {
	ID    string
	Point Point
}

// Hit is an entry found by a query together with its distance from the query point.
type Hit struct {
	ID             string
	Point          Point
	DistanceMeters float64
}

// Index answers radius and nearest-neighbour queries. It is immutable once built
// and safe for concurrent use.
type Index struct {
	tree    rtree.RTree
	entries []Entry
}

// NewIndex builds an index over entries. Entries with invalid coordinates are skipped.
func NewIndex(entries []Entry) *Index {
	ix := &Index{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		if !Valid(e.Point) {
			continue
		}
		pos := [2]float64{e.Point.Lon, e.Point.Lat}
		ix.tree.Insert(pos, pos, len(ix.entries))
		ix.entries = append(ix.entries, e)
	}
	return ix
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// WithinRadius returns entries within radiusMeters of p, nearest first.
// Equal distances are ordered by ID so results are stable.
func (ix *Index) WithinRadius(p Point, radiusMeters float64) []Hit {
	if len(ix.entries) == 0 || radiusMeters <= 0 {
		return nil
	}

	span := radiusMeters * boxPadding
	dLat := span / metersPerDegreeLat
	dLon := 180.0
	if c := math.Cos(p.Lat * math.Pi / 180); c > 1e-6 {
		dLon = math.Min(180, span/(metersPerDegreeLat*c))
	}
	lo := [2]float64{p.Lon - dLon, p.Lat - dLat}
	hi := [2]float64{p.Lon + dLon, p.Lat + dLat}

	var hits []Hit
	ix.tree.Search(lo, hi, func(_, _ [2]float64, data interface{}) bool {
		e := ix.entries[data.(int)]
		if d := Distance(p, e.Point); d <= radiusMeters {
			hits = append(hits, Hit{ID: e.ID, Point: e.Point, DistanceMeters: d})
		}
		return true
	})

	sortHits(hits)
	return hits
}

// Nearest returns the entry closest to p. ok is false when the index is empty.
func (ix *Index) Nearest(p Point) (Hit, bool) {
	if len(ix.entries) == 0 {
		return Hit{}, false
	}

	best := Hit{DistanceMeters: math.Inf(1)}
	for _, e := range ix.entries {
		d := Distance(p, e.Point)
		if d < best.DistanceMeters || (d == best.DistanceMeters && e.ID < best.ID) {
			best = Hit{ID: e.ID, Point: e.Point, DistanceMeters: d}
		}
	}
	return best, true
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].ID < hits[j].ID
	})
}

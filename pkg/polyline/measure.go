package polyline

import "math"

// EarthRadiusMeters is the mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle (haversine) distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Length is the summed great-circle length of the line in meters.
func Length(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

// Projection is the closest point of a line to some query point.
type Projection struct {
	// Point is the closest point on the line.
	Point Coordinate

	// Segment is the index of the vertex starting the segment holding Point.
	Segment int

	// AlongMeters is the arc length from the first vertex to Point.
	AlongMeters float64

	// OffsetMeters is the distance from the query point to Point.
	OffsetMeters float64
}

// Project finds the point on the line nearest to p and its arc-length position.
// Each segment is treated as straight in a local equirectangular frame, which is
// accurate to well under a meter at city scale. ok is false for an empty line.
func Project(coords []Coordinate, p Coordinate) (Projection, bool) {
	switch len(coords) {
	case 0:
		return Projection{}, false
	case 1:
		return Projection{Point: coords[0], OffsetMeters: Distance(coords[0], p)}, true
	}

	best := Projection{OffsetMeters: math.Inf(1)}
	var along float64
	for i := 0; i < len(coords)-1; i++ {
		a, b := coords[i], coords[i+1]
		segLen := Distance(a, b)
		t := segmentFraction(a, b, p)
		q := Coordinate{
			Lat: a.Lat + t*(b.Lat-a.Lat),
			Lon: a.Lon + t*(b.Lon-a.Lon),
		}
		if d := Distance(q, p); d < best.OffsetMeters {
			best = Projection{
				Point:        q,
				Segment:      i,
				AlongMeters:  along + t*segLen,
				OffsetMeters: d,
			}
		}
		along += segLen
	}
	return best, true
}

// segmentFraction returns where p projects onto a→b, clamped to [0, 1].
func segmentFraction(a, b, p Coordinate) float64 {
	kx := math.Cos((a.Lat + b.Lat) / 2 * math.Pi / 180)
	bx, by := (b.Lon-a.Lon)*kx, b.Lat-a.Lat
	px, py := (p.Lon-a.Lon)*kx, p.Lat-a.Lat

	den := bx*bx + by*by
	if den == 0 {
		return 0
	}
	t := (px*bx + py*by) / den
	return math.Max(0, math.Min(1, t))
}

// Package polyline encodes route geometry in Google's polyline format and measures
// positions along it. The encoding is documented at
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"
	"strings"
)

// precision is the number of decimal places kept by the encoding (factor 1e5).
const precision = 1e5

// Coordinate is a WGS84 vertex.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Decode turns an encoded polyline back into vertices.
// Malformed trailing input is dropped rather than reported.
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	var (
		coords   []Coordinate
		lat, lon int
		pos      int
	)
	for pos < len(encoded) {
		dLat, next, ok := readValue(encoded, pos)
		if !ok {
			break
		}
		dLon, next, ok := readValue(encoded, next)
		if !ok {
			break
		}
		pos = next
		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{Lat: float64(lat) / precision, Lon: float64(lon) / precision})
	}
	return coords
}

// readValue reads one zig-zag encoded delta starting at pos.
func readValue(s string, pos int) (int, int, bool) {
	var result, shift int
	for pos < len(s) {
		b := int(s[pos]) - 63
		pos++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), pos, true
			}
			return result >> 1, pos, true
		}
	}
	return 0, pos, false
}

// Encode renders vertices as an encoded polyline.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(coords) * 8)

	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		writeValue(&sb, lat-prevLat)
		writeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func writeValue(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((u&0x1f)|0x20) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

package geo

import (
	"math"

	"github.com/goccy/go-json"
	"github.com/twpayne/go-geom"
)

// SignedArea returns the shoelace area of a ring given as flat coordinates
// with the provided stride. Positive area means counter-clockwise order.
// The ring does not need to be closed.
func SignedArea(flat []float64, stride int) float64 {
	if stride < 2 {
		return 0
	}
	n := len(flat) / stride
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		x1, y1 := flat[i*stride], flat[i*stride+1]
		x2, y2 := flat[j*stride], flat[j*stride+1]
		sum += x1*y2 - x2*y1
	}

	return sum / 2
}

// CoordEqual reports whether two coordinates are exactly equal in every dimension.
func CoordEqual(a, b geom.Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Finite reports whether every ordinate of c is a finite number.
func Finite(c geom.Coord) bool {
	for _, v := range c {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// PeekType returns the top-level "type" member of a GeoJSON-like document
// without decoding the rest of it.
func PeekType(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	return head.Type, nil
}

// TypeName returns the GeoJSON type tag of g, or "null" for a nil geometry.
func TypeName(g geom.T) string {
	switch g.(type) {
	case nil:
		return "null"
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}

// RingContains reports whether (x, y) lies inside a ring given as flat
// coordinates, using the even-odd rule.
func RingContains(flat []float64, stride int, x, y float64) bool {
	if stride < 2 {
		return false
	}
	n := len(flat) / stride
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Reverse returns a copy of flat with the coordinate order reversed.
func Reverse(flat []float64, stride int) []float64 {
	out := make([]float64, len(flat))
	n := len(flat) / stride
	for i := 0; i < n; i++ {
		copy(out[(n-1-i)*stride:(n-i)*stride], flat[i*stride:(i+1)*stride])
	}
	return out
}

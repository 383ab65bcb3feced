//go:build !nos2

package validate

import (
	"github.com/golang/geo/s2"
)

const intersectionsAvailable = true

func pointAt(flat []float64, stride, i int) s2.Point {
	// coordinates are [lon, lat]
	return s2.PointFromLatLng(s2.LatLngFromDegrees(flat[i*stride+1], flat[i*stride]))
}

// selfIntersection returns the first pair of non-adjacent segments of the
// polyline that cross or touch each other. For a closed ring the first and
// the last segment are adjacent. Repeated consecutive vertices are collapsed
// first and segment indices refer to the input coordinates.
func selfIntersection(flat []float64, stride int, closed bool) (crossing, bool) {
	n := len(flat) / stride

	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if len(idx) > 0 && samePoint(flat, stride, idx[len(idx)-1], i) {
			continue
		}
		idx = append(idx, i)
	}
	if len(idx) < 4 {
		return crossing{}, false
	}

	pts := make([]s2.Point, len(idx))
	for k, i := range idx {
		pts[k] = pointAt(flat, stride, i)
	}

	segs := len(idx) - 1
	for i := 0; i < segs; i++ {
		for j := i + 2; j < segs; j++ {
			if closed && i == 0 && j == segs-1 {
				continue
			}

			a, b, c, d := idx[i], idx[i+1], idx[j], idx[j+1]
			if onSegment(flat, stride, c, a, b) || onSegment(flat, stride, d, a, b) ||
				onSegment(flat, stride, a, c, d) || onSegment(flat, stride, b, c, d) {
				return crossing{a: idx[i], b: idx[j], touch: true}, true
			}
			if s2.CrossingSign(pts[i], pts[i+1], pts[j], pts[j+1]) == s2.Cross {
				return crossing{a: idx[i], b: idx[j]}, true
			}
		}
	}
	return crossing{}, false
}

func samePoint(flat []float64, stride, i, j int) bool {
	return flat[i*stride] == flat[j*stride] && flat[i*stride+1] == flat[j*stride+1]
}

// onSegment reports whether vertex p lies exactly on the segment a-b,
// endpoints included.
func onSegment(flat []float64, stride, p, a, b int) bool {
	px, py := flat[p*stride], flat[p*stride+1]
	ax, ay := flat[a*stride], flat[a*stride+1]
	bx, by := flat[b*stride], flat[b*stride+1]

	if (bx-ax)*(py-ay)-(by-ay)*(px-ax) != 0 {
		return false
	}
	return min(ax, bx) <= px && px <= max(ax, bx) &&
		min(ay, by) <= py && py <= max(ay, by)
}

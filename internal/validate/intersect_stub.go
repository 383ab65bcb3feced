//go:build nos2

package validate

const intersectionsAvailable = false

func selfIntersection([]float64, int, bool) (crossing, bool) {
	return crossing{}, false
}

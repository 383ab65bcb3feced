//go:build !nos2

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

func TestSelfIntersection(t *testing.T) {
	opts := DefaultOptions()
	opts.CheckIntersections = true

	bowtie := []float64{0, 0, 1, 1, 1, 0, 0, 1, 0, 0}
	res := Validate(geo.NewFeatureCollection(feature(polygon(bowtie))), opts)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CodeSelfIntersection, res.Warnings[0].Code)
	assert.Equal(t, []int{0, 2}, res.Warnings[0].Details["segments"])
	assert.True(t, res.Valid)

	res = Validate(geo.NewFeatureCollection(feature(polygon(ccwSquare))), opts)
	assert.Empty(t, res.Warnings)

	zigzag := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 2, 2, 2, 0, 0, 2})
	res = Validate(geo.NewFeatureCollection(feature(zigzag)), opts)
	assert.Equal(t, []Code{CodeSelfIntersection}, codes(res))

	res = Validate(geo.NewFeatureCollection(feature(zigzag)), DefaultOptions())
	assert.Empty(t, res.Warnings)
}

func TestSelfIntersectionAdjacentSegments(t *testing.T) {
	_, ok := selfIntersection(ccwSquare, 2, true)
	assert.False(t, ok)

	_, ok = selfIntersection([]float64{0, 0, 1, 0, 2, 0}, 2, false)
	assert.False(t, ok)
}

func TestSelfTouching(t *testing.T) {
	opts := DefaultOptions()
	opts.CheckIntersections = true

	ring := []float64{0, 0, 2, 0, 1, 1, 2, 2, 0, 2, 1, 1, 0, 0}
	res := Validate(geo.NewFeatureCollection(feature(polygon(ring))), opts)
	assert.Equal(t, []Code{CodeSelfTouching}, codes(res))
	assert.Equal(t, []int{1, 4}, res.Warnings[0].Details["segments"])
	assert.Contains(t, res.Warnings[0].Message, "touches itself")

	// vertex (1,0) lies inside segment 0
	spike := []float64{0, 0, 2, 0, 2, 2, 1, 0, 0, 2, 0, 0}
	c, ok := selfIntersection(spike, 2, true)
	require.True(t, ok)
	assert.True(t, c.touch)
	assert.Equal(t, []int{0, 2}, []int{c.a, c.b})

	loop := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0})
	res = Validate(geo.NewFeatureCollection(feature(loop)), opts)
	assert.Empty(t, res.Warnings)
}

func TestSelfTouchingIgnoresRepeatedVertices(t *testing.T) {
	ring := []float64{0, 0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 0}
	_, ok := selfIntersection(ring, 2, true)
	assert.False(t, ok)
}

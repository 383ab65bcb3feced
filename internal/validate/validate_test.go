package validate

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

func polygon(rings ...[]float64) *geom.Polygon {
	var flat []float64
	var ends []int
	for _, r := range rings {
		flat = append(flat, r...)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

func feature(g geom.T) *geo.Feature {
	return &geo.Feature{Geometry: g, Properties: map[string]any{}}
}

func codes(res *Result) []Code {
	out := make([]Code, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		out = append(out, w.Code)
	}
	return out
}

var (
	cwSquare  = []float64{0, 0, 0, 1, 1, 1, 1, 0, 0, 0}
	ccwSquare = []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}
)

func TestWindingOrder(t *testing.T) {
	res := Validate(geo.NewFeatureCollection(feature(polygon(cwSquare))), DefaultOptions())
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, CodeWrongWinding, w.Code)
	assert.Equal(t, SeverityWarning, w.Severity)
	assert.Equal(t, map[string]any{"ring": 0}, w.Details)
	assert.True(t, res.Valid)

	res = Validate(geo.NewFeatureCollection(feature(polygon(ccwSquare))), DefaultOptions())
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, res.ValidFeatureCount)

	hole := []float64{0.2, 0.2, 0.8, 0.2, 0.8, 0.8, 0.2, 0.8, 0.2, 0.2}
	res = Validate(geo.NewFeatureCollection(feature(polygon(ccwSquare, hole))), DefaultOptions())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Hole 1 should be clockwise (RFC 7946)", res.Warnings[0].Message)
	assert.Equal(t, map[string]any{"ring": 1}, res.Warnings[0].Details)

	degenerate := []float64{0, 0, 1, 1, 2, 2, 0, 0}
	res = Validate(geo.NewFeatureCollection(feature(polygon(degenerate))), DefaultOptions())
	assert.Empty(t, res.ByCode(CodeWrongWinding))

	opts := DefaultOptions()
	opts.CheckWinding = false
	res = Validate(geo.NewFeatureCollection(feature(polygon(cwSquare))), opts)
	assert.Empty(t, res.Warnings)
}

func TestWarningCap(t *testing.T) {
	fc := geo.NewFeatureCollection()
	for i := 0; i < 5; i++ {
		fc.Add(feature(geom.NewPointFlat(geom.XY, []float64{200, float64(i)})))
	}

	res := Validate(fc, Options{CheckCoordinates: true, MaxWarnings: 2})
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, 3, res.Suppressed)
	assert.Equal(t, 5, res.FeatureCount)
	assert.Equal(t, 5, res.ValidFeatureCount)
	assert.True(t, res.Valid)

	res = Validate(fc, Options{CheckCoordinates: true})
	assert.Len(t, res.Warnings, 5)
	assert.Zero(t, res.Suppressed)
}

func TestSuppressedErrorsKeepResultInvalid(t *testing.T) {
	fc := geo.NewFeatureCollection(
		feature(geom.NewPointFlat(geom.XY, []float64{0, 95})),
		feature(geom.NewPointFlat(geom.XY, []float64{0, -95})),
		feature(geom.NewPointFlat(geom.XY, []float64{math.NaN(), 0})),
	)

	res := Validate(fc, Options{CheckCoordinates: true, MaxWarnings: 2})
	assert.Equal(t, []Code{CodeOutOfBounds, CodeOutOfBounds}, codes(res))
	assert.Equal(t, 1, res.Suppressed)
	assert.Zero(t, res.ErrorCount())
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.ValidFeatureCount)
}

func TestValidateIdempotent(t *testing.T) {
	ring := []float64{0, 0, 0, 1, 0, 1, 1, 1, 1, 0}
	fc := geo.NewFeatureCollection(
		feature(polygon(ring)),
		&geo.Feature{ID: "x", Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 0, 181, 1})},
		&geo.Feature{ID: 7},
	)
	before := append([]float64(nil), ring...)

	v := New(DefaultOptions())
	first := v.Validate(fc)
	second := v.Validate(fc)
	assert.Equal(t, first, second)
	assert.Equal(t, before, fc.Features[0].Geometry.FlatCoords())
	assert.Nil(t, fc.Features[2].Properties)
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name    string
		feature *geo.Feature
		want    []Code
		valid   bool
	}{
		{
			name:    "null geometry and properties",
			feature: &geo.Feature{},
			want:    []Code{CodeNullGeometry, CodeNullProperties},
			valid:   true,
		},
		{
			name:    "empty polygon",
			feature: feature(geom.NewPolygon(geom.XY)),
			want:    []Code{CodeEmptyPolygon},
		},
		{
			name:    "short ring",
			feature: feature(polygon([]float64{0, 0, 1, 0, 0, 0})),
			want:    []Code{CodeInsufficientCoordinates},
		},
		{
			name:    "single point line",
			feature: feature(geom.NewLineStringFlat(geom.XY, []float64{1, 1})),
			want:    []Code{CodeInsufficientCoordinates},
		},
		{
			name:    "unclosed ring",
			feature: feature(polygon([]float64{0, 0, 1, 0, 1, 1, 0, 1})),
			want:    []Code{CodeUnclosedRing},
		},
		{
			name:    "duplicate vertex in ring",
			feature: feature(polygon([]float64{0, 0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 0})),
			want:    []Code{CodeDuplicateVertices},
			valid:   true,
		},
		{
			name:    "duplicate vertex in line",
			feature: feature(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 0, 0, 1, 1})),
			want:    []Code{CodeDuplicateVertices},
			valid:   true,
		},
		{
			name:    "non finite coordinate",
			feature: feature(geom.NewMultiPointFlat(geom.XY, []float64{1, 1, math.Inf(1), 0})),
			want:    []Code{CodeInvalidCoordinate},
		},
		{
			name:    "longitude and latitude out of range",
			feature: feature(geom.NewPointFlat(geom.XY, []float64{-190, 91})),
			want:    []Code{CodeOutOfBounds, CodeOutOfBounds},
			valid:   true,
		},
		{
			name:    "empty multipoint",
			feature: feature(geom.NewMultiPoint(geom.XY)),
			want:    []Code{CodeEmptyGeometry},
			valid:   true,
		},
		{
			name: "collection members",
			feature: feature(geom.NewGeometryCollection().MustPush(
				geom.NewPointFlat(geom.XY, []float64{0, 100}),
				polygon(cwSquare),
			)),
			want:  []Code{CodeOutOfBounds, CodeWrongWinding},
			valid: true,
		},
		{
			name:    "empty collection",
			feature: feature(geom.NewGeometryCollection()),
			want:    []Code{CodeEmptyGeometry},
			valid:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(geo.NewFeatureCollection(tt.feature), DefaultOptions())
			assert.Equal(t, tt.want, codes(res))
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, 1, res.FeatureCount)
			if tt.valid {
				assert.Equal(t, 1, res.ValidFeatureCount)
			} else {
				assert.Zero(t, res.ValidFeatureCount)
			}
		})
	}
}

func TestDisabledChecks(t *testing.T) {
	fc := geo.NewFeatureCollection(
		feature(polygon([]float64{0, 0, 0, 1, 0, 1, 1, 1, 300, 0})),
		feature(geom.NewPointFlat(geom.XY, []float64{math.NaN(), 0})),
	)
	res := Validate(fc, Options{})
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Valid)
}

func TestFeatureIdentity(t *testing.T) {
	fc := geo.NewFeatureCollection(
		feature(polygon(ccwSquare)),
		&geo.Feature{ID: "road-1", Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0}), Properties: map[string]any{}},
	)
	res := Validate(fc, DefaultOptions())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, res.Warnings[0].FeatureIndex)
	assert.Equal(t, "road-1", res.Warnings[0].FeatureID)
	assert.Equal(t, SeverityError, res.Warnings[0].Severity)
	assert.Equal(t, 1, res.ValidFeatureCount)
}

func TestNilCollection(t *testing.T) {
	res := Validate(nil, DefaultOptions())
	assert.True(t, res.Valid)
	assert.Zero(t, res.FeatureCount)
	assert.NotNil(t, res.Warnings)
}

func TestSummary(t *testing.T) {
	fc := geo.NewFeatureCollection(
		feature(polygon(cwSquare)),
		feature(polygon(cwSquare)),
		&geo.Feature{Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0})},
	)
	res := Validate(fc, DefaultOptions())
	assert.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, 2, res.WarningCount())
	assert.Len(t, res.ByCode(CodeWrongWinding), 2)

	s := res.Summary()
	assert.True(t, strings.HasPrefix(s, "Validated 3 features\n  Valid: 2\n  Warnings: 2\n  Errors: 1"))
	assert.Contains(t, s, "  - insufficient_coordinates: 1\n  - null_properties: 1\n  - wrong_winding: 2")

	clean := Validate(geo.NewFeatureCollection(), DefaultOptions())
	assert.NotContains(t, clean.Summary(), "Issues found")
}

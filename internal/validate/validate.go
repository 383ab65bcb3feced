// Package validate inspects feature collections for geometry problems and
// reports them as graded findings. It never modifies its input.
package validate

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

// Coordinate ranges of WGS84 longitude and latitude.
const (
	LonMin = -180.0
	LonMax = 180.0
	LatMin = -90.0
	LatMax = 90.0
)

// Options selects the checks to run.
type Options struct {
	CheckCoordinates   bool `json:"check_coordinates" yaml:"check_coordinates"`
	CheckWinding       bool `json:"check_winding" yaml:"check_winding"`
	CheckDuplicates    bool `json:"check_duplicates" yaml:"check_duplicates"`
	CheckClosure       bool `json:"check_closure" yaml:"check_closure"`
	CheckIntersections bool `json:"check_intersections" yaml:"check_intersections"`
	// MaxWarnings caps the reported findings, 0 means unlimited.
	MaxWarnings int `json:"max_warnings" yaml:"max_warnings"`
}

// DefaultOptions enables every check except self-intersection.
func DefaultOptions() Options {
	return Options{
		CheckCoordinates: true,
		CheckWinding:     true,
		CheckDuplicates:  true,
		CheckClosure:     true,
		MaxWarnings:      100,
	}
}

// Validator runs the configured checks. It holds no state between calls
// and is safe for concurrent use.
type Validator struct {
	opts Options
}

// New returns a validator with the given options.
func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate is shorthand for New(opts).Validate(fc).
func Validate(fc *geo.FeatureCollection, opts Options) *Result {
	return New(opts).Validate(fc)
}

// Validate checks every feature of fc.
func (v *Validator) Validate(fc *geo.FeatureCollection) *Result {
	run := &run{opts: v.opts, res: &Result{Warnings: []Warning{}}}

	if v.opts.CheckIntersections && !intersectionsAvailable {
		run.index = -1
		run.add(CodeIntersectionCheckUnavailable,
			"Self-intersection check is not available in this build, skipped", nil)
	}

	if fc != nil {
		for i, f := range fc.Features {
			run.index = i
			run.id = nil
			run.featureErr = false
			run.feature(f)
			if !run.featureErr {
				run.res.ValidFeatureCount++
			}
		}
	}

	run.res.FeatureCount = fc.Len()
	run.res.Valid = !run.anyErr
	return run.res
}

// run carries the state of one Validate call.
type run struct {
	opts       Options
	res        *Result
	index      int
	id         any
	featureErr bool
	anyErr     bool
}

func (r *run) add(code Code, msg string, details map[string]any) {
	sev := code.Severity()
	if sev == SeverityError {
		r.featureErr = true
		r.anyErr = true
	}

	if r.opts.MaxWarnings > 0 && len(r.res.Warnings) >= r.opts.MaxWarnings {
		r.res.Suppressed++
		return
	}
	r.res.Warnings = append(r.res.Warnings, Warning{
		FeatureIndex: r.index,
		FeatureID:    r.id,
		Severity:     sev,
		Code:         code,
		Message:      msg,
		Details:      details,
	})
}

func (r *run) feature(f *geo.Feature) {
	if f == nil {
		r.add(CodeNullGeometry, "Feature has null geometry", nil)
		return
	}
	r.id = f.ID

	if f.Geometry == nil {
		r.add(CodeNullGeometry, "Feature has null geometry", nil)
	} else {
		r.geometry(f.Geometry)
	}

	if f.Properties == nil {
		r.add(CodeNullProperties, "Feature has null properties (should be empty object {})", nil)
	}
}

func (r *run) geometry(g geom.T) {
	switch g := g.(type) {
	case *geom.Point:
		if g.Empty() {
			r.add(CodeEmptyGeometry, "Point is empty", nil)
			return
		}
		r.coords(g.FlatCoords(), g.Stride())

	case *geom.MultiPoint:
		if g.Empty() {
			r.add(CodeEmptyGeometry, "MultiPoint is empty", nil)
			return
		}
		r.coords(g.FlatCoords(), g.Stride())

	case *geom.LineString:
		r.lineString(g.FlatCoords(), g.Stride())

	case *geom.MultiLineString:
		if g.NumLineStrings() == 0 {
			r.add(CodeEmptyGeometry, "MultiLineString is empty", nil)
			return
		}
		for i := 0; i < g.NumLineStrings(); i++ {
			ls := g.LineString(i)
			r.lineString(ls.FlatCoords(), ls.Stride())
		}

	case *geom.Polygon:
		r.polygon(g)

	case *geom.MultiPolygon:
		if g.NumPolygons() == 0 {
			r.add(CodeEmptyGeometry, "MultiPolygon is empty", nil)
			return
		}
		for i := 0; i < g.NumPolygons(); i++ {
			r.polygon(g.Polygon(i))
		}

	case *geom.GeometryCollection:
		if g.NumGeoms() == 0 {
			r.add(CodeEmptyGeometry, "GeometryCollection is empty", nil)
			return
		}
		for _, child := range g.Geoms() {
			if child == nil {
				r.add(CodeNullGeometry, "GeometryCollection member is null", nil)
				continue
			}
			r.geometry(child)
		}
	}
}

// coords checks every coordinate and reports whether all of them are finite.
func (r *run) coords(flat []float64, stride int) bool {
	finite := true
	for i := 0; i+stride <= len(flat); i += stride {
		c := geom.Coord(flat[i : i+stride])
		if !geo.Finite(c) {
			finite = false
			if r.opts.CheckCoordinates {
				r.add(CodeInvalidCoordinate, fmt.Sprintf("Invalid coordinate: %v", []float64(c)),
					map[string]any{"coordinate": append([]float64(nil), c...)})
			}
			continue
		}
		if !r.opts.CheckCoordinates {
			continue
		}

		lon, lat := c.X(), c.Y()
		if lon < LonMin || lon > LonMax {
			r.add(CodeOutOfBounds,
				fmt.Sprintf("Longitude %v is out of range [%v, %v]", lon, LonMin, LonMax),
				map[string]any{"coordinate": append([]float64(nil), c...)})
		}
		if lat < LatMin || lat > LatMax {
			r.add(CodeOutOfBounds,
				fmt.Sprintf("Latitude %v is out of range [%v, %v]", lat, LatMin, LatMax),
				map[string]any{"coordinate": append([]float64(nil), c...)})
		}
	}
	return finite
}

func (r *run) lineString(flat []float64, stride int) {
	n := len(flat) / stride
	if n == 0 {
		r.add(CodeEmptyGeometry, "LineString is empty", nil)
		return
	}
	if n < 2 {
		r.add(CodeInsufficientCoordinates,
			fmt.Sprintf("LineString has %d points, needs at least 2", n), nil)
		return
	}

	finite := r.coords(flat, stride)

	if r.opts.CheckDuplicates {
		if dups := duplicates(flat, stride, false); len(dups) > 0 {
			r.add(CodeDuplicateVertices,
				fmt.Sprintf("LineString has %d duplicate consecutive vertices", len(dups)),
				map[string]any{"duplicate_indices": head(dups, 5)})
		}
	}

	if r.opts.CheckIntersections && intersectionsAvailable && finite {
		n := len(flat) / stride
		loop := n > 1 && geo.CoordEqual(flat[:stride], flat[(n-1)*stride:])
		if c, ok := selfIntersection(flat, stride, loop); ok {
			r.add(c.code(),
				fmt.Sprintf("LineString %s itself at segments %d and %d", c.verb(), c.a, c.b),
				map[string]any{"segments": []int{c.a, c.b}})
		}
	}
}

func (r *run) polygon(p *geom.Polygon) {
	if p.NumLinearRings() == 0 {
		r.add(CodeEmptyPolygon, "Polygon has no rings", nil)
		return
	}

	stride := p.Stride()
	for i := 0; i < p.NumLinearRings(); i++ {
		flat := p.LinearRing(i).FlatCoords()
		name := "exterior"
		if i > 0 {
			name = fmt.Sprintf("hole %d", i)
		}

		n := len(flat) / stride
		if n < 4 {
			r.add(CodeInsufficientCoordinates,
				fmt.Sprintf("Polygon %s ring has %d points, needs 4", name, n),
				map[string]any{"ring": i})
			continue
		}

		first := geom.Coord(flat[:stride])
		last := geom.Coord(flat[len(flat)-stride:])
		closed := geo.CoordEqual(first, last)
		if r.opts.CheckClosure && !closed {
			r.add(CodeUnclosedRing, fmt.Sprintf("Polygon %s ring is not closed", name),
				map[string]any{
					"ring":  i,
					"first": append([]float64(nil), first...),
					"last":  append([]float64(nil), last...),
				})
		}

		finite := r.coords(flat, stride)

		if r.opts.CheckDuplicates {
			if dups := duplicates(flat, stride, closed); len(dups) > 0 {
				r.add(CodeDuplicateVertices,
					fmt.Sprintf("Polygon %s ring has %d duplicate vertices", name, len(dups)),
					map[string]any{"ring": i, "duplicate_indices": head(dups, 5)})
			}
		}

		if r.opts.CheckWinding && finite {
			area := geo.SignedArea(flat, stride)
			switch {
			case area == 0:
			case i == 0 && area < 0:
				r.add(CodeWrongWinding, "Exterior ring should be counter-clockwise (RFC 7946)",
					map[string]any{"ring": i})
			case i > 0 && area > 0:
				r.add(CodeWrongWinding, fmt.Sprintf("Hole %d should be clockwise (RFC 7946)", i),
					map[string]any{"ring": i})
			}
		}

		if r.opts.CheckIntersections && intersectionsAvailable && finite {
			if c, ok := selfIntersection(flat, stride, closed); ok {
				r.add(c.code(),
					fmt.Sprintf("Polygon %s ring %s itself at segments %d and %d", name, c.verb(), c.a, c.b),
					map[string]any{"ring": i, "segments": []int{c.a, c.b}})
			}
		}
	}
}

// crossing is a pair of non-adjacent segments that meet. Touching segments
// share a point without passing through each other.
type crossing struct {
	a, b  int
	touch bool
}

func (c crossing) code() Code {
	if c.touch {
		return CodeSelfTouching
	}
	return CodeSelfIntersection
}

func (c crossing) verb() string {
	if c.touch {
		return "touches"
	}
	return "crosses"
}

// duplicates returns the indices of coordinates equal to their predecessor.
// With closed set the closing coordinate is not counted.
func duplicates(flat []float64, stride int, closed bool) []int {
	n := len(flat) / stride
	var out []int
	for i := 1; i < n; i++ {
		if closed && i == n-1 {
			break
		}
		if geo.CoordEqual(flat[(i-1)*stride:i*stride], flat[i*stride:(i+1)*stride]) {
			out = append(out, i)
		}
	}
	return out
}

func head(s []int, n int) []int {
	if len(s) > n {
		return s[:n]
	}
	return s
}

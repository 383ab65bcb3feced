package topojson

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

// refEncoder builds quantized topologies from feature collections.
// Every line or ring is split in two arcs sharing the middle vertex, the
// second one stored reversed, so decoding exercises both reversal and
// shared-endpoint removal.
type refEncoder struct {
	t         *testing.T
	transform Transform
	arcs      [][][]float64
}

func newRefEncoder(t *testing.T, scale, translate [2]float64) *refEncoder {
	return &refEncoder{t: t, transform: Transform{Scale: scale, Translate: translate}}
}

func (e *refEncoder) quantize(c geom.Coord) (float64, float64) {
	qx := math.Round((c[0] - e.transform.Translate[0]) / e.transform.Scale[0])
	qy := math.Round((c[1] - e.transform.Translate[1]) / e.transform.Scale[1])
	return qx, qy
}

func (e *refEncoder) arc(coords []geom.Coord) int {
	out := make([][]float64, 0, len(coords))
	var px, py float64
	for i, c := range coords {
		x, y := e.quantize(c)
		if i == 0 {
			out = append(out, []float64{x, y})
		} else {
			out = append(out, []float64{x - px, y - py})
		}
		px, py = x, y
	}
	e.arcs = append(e.arcs, out)
	return len(e.arcs) - 1
}

func reversed(coords []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}

func (e *refEncoder) line(coords []geom.Coord) []int {
	if len(coords) < 3 {
		return []int{e.arc(coords)}
	}
	mid := len(coords) / 2
	first := e.arc(coords[:mid+1])
	second := e.arc(reversed(coords[mid:]))
	return []int{first, -second - 1}
}

func (e *refEncoder) lines(groups [][]geom.Coord) [][]int {
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, e.line(g))
	}
	return out
}

func (e *refEncoder) raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	require.NoError(e.t, err)
	return data
}

func (e *refEncoder) object(g geom.T) *Object {
	switch g := g.(type) {
	case nil:
		return &Object{Type: "null"}
	case *geom.Point:
		x, y := e.quantize(g.Coords())
		return &Object{Type: "Point", Coordinates: e.raw([]float64{x, y})}
	case *geom.MultiPoint:
		pos := make([][]float64, 0, g.NumPoints())
		for _, c := range g.Coords() {
			x, y := e.quantize(c)
			pos = append(pos, []float64{x, y})
		}
		return &Object{Type: "MultiPoint", Coordinates: e.raw(pos)}
	case *geom.LineString:
		return &Object{Type: "LineString", Arcs: e.raw(e.line(g.Coords()))}
	case *geom.MultiLineString:
		return &Object{Type: "MultiLineString", Arcs: e.raw(e.lines(g.Coords()))}
	case *geom.Polygon:
		return &Object{Type: "Polygon", Arcs: e.raw(e.lines(g.Coords()))}
	case *geom.MultiPolygon:
		polys := make([][][]int, 0, g.NumPolygons())
		for _, p := range g.Coords() {
			polys = append(polys, e.lines(p))
		}
		return &Object{Type: "MultiPolygon", Arcs: e.raw(polys)}
	case *geom.GeometryCollection:
		obj := &Object{Type: "GeometryCollection"}
		for _, child := range g.Geoms() {
			obj.Geometries = append(obj.Geometries, e.object(child))
		}
		return obj
	}
	e.t.Fatalf("unsupported geometry %T", g)
	return nil
}

// Encode returns a topology holding one GeometryCollection object named
// name with one member per feature.
func (e *refEncoder) Encode(name string, fc *geo.FeatureCollection) *Topology {
	collection := &Object{Type: "GeometryCollection"}
	for _, f := range fc.Features {
		obj := e.object(f.Geometry)
		obj.ID = f.ID
		obj.Properties = f.Properties
		collection.Geometries = append(collection.Geometries, obj)
	}

	transform := e.transform
	return &Topology{
		Type:      "Topology",
		Transform: &transform,
		Objects:   Objects{{Name: name, Object: collection}},
		Arcs:      e.arcs,
	}
}

package topojson

import (
	"maps"

	"github.com/goccy/go-json"
	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

// DefaultMaxDepth bounds GeometryCollection nesting.
const DefaultMaxDepth = 32

type options struct {
	object   string
	maxDepth int
	absolute bool
}

// Option configures Decode.
type Option func(*options)

// WithObject decodes only the named object. A missing name is a DecodeError.
func WithObject(name string) Option {
	return func(o *options) { o.object = name }
}

// WithMaxDepth overrides the GeometryCollection nesting limit.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithAbsoluteArcs treats arc positions as absolute when the topology has no
// transform, as unquantized TopoJSON writers produce them.
func WithAbsoluteArcs() Option {
	return func(o *options) { o.absolute = true }
}

// arcSlot holds one materialized arc as flat XY pairs.
type arcSlot struct {
	flat  []float64
	ready bool
}

// node is a validated object with its arc references parsed.
type node struct {
	obj      *Object
	kind     string
	layout   geom.Layout
	points   []float64
	lines    [][]int
	polygons [][][]int
	children []*node
}

type decoder struct {
	topo    *Topology
	opts    options
	arcs    []arcSlot
	object  string
	decodes int
}

// Decode converts a topology into a feature collection. Every object is
// decoded in document order unless WithObject selects one.
func Decode(t *Topology, opts ...Option) (*geo.FeatureCollection, error) {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}

	if t == nil {
		return nil, decodeErrorf("", "nil topology")
	}
	if t.Type != "" && t.Type != "Topology" {
		return nil, decodeErrorf("", "unexpected type %q, want Topology", t.Type)
	}
	if t.Objects == nil {
		return nil, decodeErrorf("", "missing objects")
	}

	selected := t.Objects
	if o.object != "" {
		obj, ok := t.Objects.Get(o.object)
		if !ok {
			return nil, decodeErrorf(o.object, "object not found")
		}
		selected = Objects{{Name: o.object, Object: obj}}
	}

	return newDecoder(t, o).run(selected)
}

func newDecoder(t *Topology, o options) *decoder {
	return &decoder{topo: t, opts: o, arcs: make([]arcSlot, len(t.Arcs))}
}

func (d *decoder) run(selected Objects) (*geo.FeatureCollection, error) {
	// every referenced arc is materialized before any stitching happens
	plans := make([]*node, 0, len(selected))
	for _, named := range selected {
		d.object = named.Name
		n, err := d.plan(named.Object, 0)
		if err != nil {
			return nil, err
		}
		plans = append(plans, n)
	}

	fc := geo.NewFeatureCollection()
	for _, n := range plans {
		if n.kind == "GeometryCollection" {
			for _, child := range n.children {
				fc.Add(d.feature(child))
			}
			continue
		}
		fc.Add(d.feature(n))
	}

	return fc, nil
}

// DecodeFile parses the topology at path and decodes it.
func DecodeFile(path string, opts ...Option) (*geo.FeatureCollection, error) {
	t, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(t, opts...)
}

func (d *decoder) plan(obj *Object, depth int) (*node, error) {
	if obj == nil {
		return &node{kind: "null"}, nil
	}
	if depth > d.opts.maxDepth {
		return nil, decodeErrorf(d.object, "geometry collection nesting exceeds %d", d.opts.maxDepth)
	}

	n := &node{obj: obj, kind: obj.Type}

	switch obj.Type {
	case "", "null":
		n.kind = "null"

	case "Point":
		var pos []float64
		if err := d.unmarshal(obj.Coordinates, &pos, "coordinates"); err != nil {
			return nil, err
		}
		layout, flat, err := d.positions([][]float64{pos})
		if err != nil {
			return nil, err
		}
		n.layout, n.points = layout, flat

	case "MultiPoint":
		var pos [][]float64
		if err := d.unmarshal(obj.Coordinates, &pos, "coordinates"); err != nil {
			return nil, err
		}
		layout, flat, err := d.positions(pos)
		if err != nil {
			return nil, err
		}
		n.layout, n.points = layout, flat

	case "LineString":
		var refs []int
		if err := d.unmarshal(obj.Arcs, &refs, "arcs"); err != nil {
			return nil, err
		}
		n.lines = [][]int{refs}

	case "MultiLineString", "Polygon":
		if err := d.unmarshal(obj.Arcs, &n.lines, "arcs"); err != nil {
			return nil, err
		}

	case "MultiPolygon":
		if err := d.unmarshal(obj.Arcs, &n.polygons, "arcs"); err != nil {
			return nil, err
		}

	case "GeometryCollection":
		for _, child := range obj.Geometries {
			c, err := d.plan(child, depth+1)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		}

	default:
		return nil, decodeErrorf(d.object, "unknown geometry type %q", obj.Type)
	}

	for _, refs := range n.lines {
		if err := d.materialize(refs); err != nil {
			return nil, err
		}
	}
	for _, poly := range n.polygons {
		for _, refs := range poly {
			if err := d.materialize(refs); err != nil {
				return nil, err
			}
		}
	}

	return n, nil
}

func (d *decoder) unmarshal(raw json.RawMessage, v any, member string) error {
	if len(raw) == 0 {
		return decodeErrorf(d.object, "missing %s", member)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodeError{Object: d.object, Reason: "malformed " + member, Err: err}
	}
	return nil
}

// positions transforms bare Point/MultiPoint positions. They are not delta encoded.
func (d *decoder) positions(pos [][]float64) (geom.Layout, []float64, error) {
	// Z is kept only when every position carries one
	layout := geom.XY
	if len(pos) > 0 {
		layout = geom.XYZ
	}
	for i, p := range pos {
		if len(p) < 2 {
			return 0, nil, decodeErrorf(d.object, "position %d has %d values", i, len(p))
		}
		if len(p) < 3 {
			layout = geom.XY
		}
	}
	stride := layout.Stride()

	flat := make([]float64, 0, len(pos)*stride)
	for _, p := range pos {
		x, y := d.topo.Transform.Apply(p[0], p[1])
		flat = append(flat, x, y)
		if stride == 3 {
			flat = append(flat, p[2])
		}
	}
	return layout, flat, nil
}

func arcIndex(ref int) (int, bool) {
	if ref < 0 {
		return -ref - 1, true
	}
	return ref, false
}

func (d *decoder) materialize(refs []int) error {
	for _, ref := range refs {
		idx, _ := arcIndex(ref)
		if idx >= len(d.arcs) {
			return decodeErrorf(d.object, "arc index %d out of range (%d arcs)", ref, len(d.arcs))
		}
		if d.arcs[idx].ready {
			continue
		}
		if err := d.decodeArc(idx); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) decodeArc(idx int) error {
	raw := d.topo.Arcs[idx]
	absolute := d.opts.absolute && d.topo.Transform == nil

	flat := make([]float64, 0, len(raw)*2)
	var x, y float64
	for k, p := range raw {
		if len(p) < 2 {
			return decodeErrorf(d.object, "arc %d position %d has %d values", idx, k, len(p))
		}
		if k == 0 || absolute {
			x, y = p[0], p[1]
		} else {
			x += p[0]
			y += p[1]
		}
		tx, ty := d.topo.Transform.Apply(x, y)
		flat = append(flat, tx, ty)
	}

	d.arcs[idx] = arcSlot{flat: flat, ready: true}
	d.decodes++
	return nil
}

// stitch concatenates arcs into one XY sequence, reversing negative
// references and dropping a leading point equal to the current tail.
func (d *decoder) stitch(dst []float64, refs []int) []float64 {
	start := len(dst)
	for _, ref := range refs {
		idx, reversed := arcIndex(ref)
		arc := d.arcs[idx].flat
		n := len(arc) / 2

		for k := 0; k < n; k++ {
			p := k
			if reversed {
				p = n - 1 - k
			}
			x, y := arc[2*p], arc[2*p+1]

			if k == 0 && len(dst)-start >= 2 && dst[len(dst)-2] == x && dst[len(dst)-1] == y {
				continue
			}
			dst = append(dst, x, y)
		}
	}
	return dst
}

func (d *decoder) build(n *node) geom.T {
	switch n.kind {
	case "Point":
		return geom.NewPointFlat(n.layout, n.points)

	case "MultiPoint":
		return geom.NewMultiPointFlat(n.layout, n.points)

	case "LineString":
		return geom.NewLineStringFlat(geom.XY, d.stitch(nil, n.lines[0]))

	case "MultiLineString":
		flat, ends := d.stitchAll(nil, n.lines)
		return geom.NewMultiLineStringFlat(geom.XY, flat, ends)

	case "Polygon":
		flat, ends := d.stitchAll(nil, n.lines)
		return geom.NewPolygonFlat(geom.XY, flat, ends)

	case "MultiPolygon":
		var flat []float64
		endss := make([][]int, 0, len(n.polygons))
		for _, poly := range n.polygons {
			var ends []int
			flat, ends = d.stitchAll(flat, poly)
			endss = append(endss, ends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss)

	case "GeometryCollection":
		gc := geom.NewGeometryCollection()
		for _, child := range n.children {
			// null members have no geometry representation inside a collection
			if g := d.build(child); g != nil {
				gc.MustPush(g)
			}
		}
		return gc
	}

	return nil
}

func (d *decoder) stitchAll(flat []float64, groups [][]int) ([]float64, []int) {
	ends := make([]int, 0, len(groups))
	for _, refs := range groups {
		flat = d.stitch(flat, refs)
		ends = append(ends, len(flat))
	}
	return flat, ends
}

func (d *decoder) feature(n *node) *geo.Feature {
	f := &geo.Feature{Geometry: d.build(n), Properties: map[string]any{}}
	if n.obj != nil {
		f.ID = n.obj.ID
		if n.obj.Properties != nil {
			f.Properties = maps.Clone(n.obj.Properties)
		}
	}
	return f
}

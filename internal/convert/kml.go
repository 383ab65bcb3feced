package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"

	"github.com/woozymasta/geoprep/internal/geo"
)

// KML reads KML documents and KMZ archives.
type KML struct{}

// Info implements Converter.
func (KML) Info() FormatInfo {
	return FormatInfo{
		Name:       "KML",
		Extensions: []string{".kml", ".kmz"},
		MIMETypes:  []string{"application/vnd.google-earth.kml+xml", "application/vnd.google-earth.kmz"},
		Available:  true,
	}
}

type kmlDocument struct {
	XMLName xml.Name `xml:"kml"`
	kmlContainer
}

type kmlContainer struct {
	Name       string         `xml:"name"`
	Documents  []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	ID           string `xml:"id,attr"`
	Name         string `xml:"name"`
	Description  string `xml:"description"`
	ExtendedData struct {
		Data []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value"`
		} `xml:"Data"`
		SimpleData []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"SchemaData>SimpleData"`
	} `xml:"ExtendedData"`
	kmlGeometries
}

type kmlGeometries struct {
	Points        []kmlCoordinates `xml:"Point"`
	LineStrings   []kmlCoordinates `xml:"LineString"`
	LinearRings   []kmlCoordinates `xml:"LinearRing"`
	Polygons      []kmlPolygon     `xml:"Polygon"`
	MultiGeometry []kmlGeometries  `xml:"MultiGeometry"`
}

type kmlCoordinates struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlCoordinates   `xml:"outerBoundaryIs>LinearRing"`
	Inner []kmlCoordinates `xml:"innerBoundaryIs>LinearRing"`
}

// kmlShape is an intermediate geometry whose layout is decided once every
// tuple of the placemark has been parsed.
type kmlShape struct {
	kind  string
	lines [][][]float64
}

// Convert implements Converter.
func (c KML) Convert(ctx context.Context, src Source, opts Options) (*Result, error) {
	name := c.Info().Name
	res := newResult(name)

	if _, ok := src.Value(); ok {
		return nil, conversionErrorf(name, nil, "KML can only be read from files or bytes")
	}
	data, err := src.ReadAll()
	if err != nil {
		return nil, conversionErrorf(name, err, "read source")
	}

	if src.isZip(".kmz") || bytes.HasPrefix(data, zipMagic) {
		member, doc, err := kmzDocument(data)
		if err != nil {
			return nil, conversionErrorf(name, err, "open KMZ")
		}
		data = doc
		res.Metadata["container"] = "kmz"
		res.Metadata["member"] = member
	}

	var doc kmlDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = xmlCharsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, conversionErrorf(name, err, "parse KML")
	}

	w := &kmlWalker{ctx: ctx, res: res, layer: opts.Layer, layers: []string{}}
	if err := w.walk(doc.kmlContainer, nil); err != nil {
		return nil, err
	}

	if w.html > 0 {
		res.warnf("%d descriptions contain HTML markup, may need cleaning", w.html)
	}
	if opts.Layer != "" {
		res.Metadata["layer"] = opts.Layer
		if !w.layerSeen {
			res.warnf("Layer %q not found", opts.Layer)
		}
	}
	res.Metadata["layers"] = w.layers

	return res, nil
}

type kmlWalker struct {
	ctx       context.Context
	res       *Result
	layer     string
	layers    []string
	layerSeen bool
	html      int
}

func (w *kmlWalker) walk(c kmlContainer, parents []string) error {
	inLayer := w.layer == ""
	for _, p := range parents {
		if p == w.layer {
			inLayer = true
		}
	}

	if inLayer {
		for i := range c.Placemarks {
			if err := w.ctx.Err(); err != nil {
				return err
			}
			w.placemark(&c.Placemarks[i], parents)
		}
	}

	for _, child := range append(append([]kmlContainer{}, c.Documents...), c.Folders...) {
		p := parents
		if child.Name != "" {
			p = append(append([]string{}, parents...), child.Name)
			w.layers = append(w.layers, strings.Join(p, "/"))
			if child.Name == w.layer {
				w.layerSeen = true
			}
		}
		if err := w.walk(child, p); err != nil {
			return err
		}
	}
	return nil
}

func (w *kmlWalker) placemark(pm *kmlPlacemark, parents []string) {
	label := pm.Name
	if label == "" {
		label = pm.ID
	}

	shapes, err := kmlShapes(&pm.kmlGeometries)
	if err != nil {
		w.res.warnf("Placemark %q skipped: %v", label, err)
		return
	}
	if len(shapes) == 0 {
		w.res.warnf("Placemark %q has no geometry, skipped", label)
		return
	}

	props := map[string]any{}
	if pm.Name != "" {
		props["name"] = pm.Name
	}
	if desc := strings.TrimSpace(pm.Description); desc != "" {
		props["description"] = desc
		if strings.Contains(desc, "<") && strings.Contains(desc, ">") {
			w.html++
		}
	}
	for _, d := range pm.ExtendedData.Data {
		props[d.Name] = strings.TrimSpace(d.Value)
	}
	for _, d := range pm.ExtendedData.SimpleData {
		props[d.Name] = strings.TrimSpace(d.Value)
	}
	if len(parents) > 0 {
		props["folder"] = strings.Join(parents, "/")
	}

	f := &geo.Feature{Geometry: buildKMLGeometry(shapes), Properties: props}
	if pm.ID != "" {
		f.ID = pm.ID
	}
	w.res.add(f)
}

// kmlShapes flattens nested MultiGeometry elements into simple shapes.
func kmlShapes(g *kmlGeometries) ([]kmlShape, error) {
	var out []kmlShape

	for _, p := range g.Points {
		c, err := parseKMLCoordinates(p.Coordinates)
		if err != nil {
			return nil, err
		}
		if len(c) != 1 {
			return nil, errors.Errorf("point with %d coordinates", len(c))
		}
		out = append(out, kmlShape{kind: "Point", lines: [][][]float64{c}})
	}
	for _, l := range append(append([]kmlCoordinates{}, g.LineStrings...), g.LinearRings...) {
		c, err := parseKMLCoordinates(l.Coordinates)
		if err != nil {
			return nil, err
		}
		out = append(out, kmlShape{kind: "LineString", lines: [][][]float64{c}})
	}
	for _, p := range g.Polygons {
		outer, err := parseKMLCoordinates(p.Outer.Coordinates)
		if err != nil {
			return nil, err
		}
		rings := [][][]float64{outer}
		for _, in := range p.Inner {
			c, err := parseKMLCoordinates(in.Coordinates)
			if err != nil {
				return nil, err
			}
			rings = append(rings, c)
		}
		out = append(out, kmlShape{kind: "Polygon", lines: rings})
	}
	for i := range g.MultiGeometry {
		nested, err := kmlShapes(&g.MultiGeometry[i])
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}

	return out, nil
}

// parseKMLCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseKMLCoordinates(s string) ([][]float64, error) {
	var out [][]float64
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(strings.TrimSuffix(tuple, ","), ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, errors.Errorf("invalid coordinate tuple %q", tuple)
		}
		c := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, errors.Errorf("invalid coordinate tuple %q", tuple)
			}
			c[i] = v
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("empty coordinates")
	}
	return out, nil
}

func buildKMLGeometry(shapes []kmlShape) geom.T {
	// XYZ only when every tuple carries an altitude
	layout := geom.XYZ
	for _, s := range shapes {
		for _, l := range s.lines {
			for _, c := range l {
				if len(c) < 3 {
					layout = geom.XY
				}
			}
		}
	}
	stride := layout.Stride()

	flatten := func(l [][]float64) []float64 {
		flat := make([]float64, 0, len(l)*stride)
		for _, c := range l {
			flat = append(flat, c[:stride]...)
		}
		return flat
	}

	build := func(s kmlShape) geom.T {
		switch s.kind {
		case "Point":
			return geom.NewPointFlat(layout, flatten(s.lines[0]))
		case "LineString":
			return geom.NewLineStringFlat(layout, flatten(s.lines[0]))
		}
		var flat []float64
		ends := make([]int, 0, len(s.lines))
		for _, r := range s.lines {
			flat = append(flat, flatten(r)...)
			ends = append(ends, len(flat))
		}
		return geom.NewPolygonFlat(layout, flat, ends)
	}

	if len(shapes) == 1 {
		return build(shapes[0])
	}

	kind := shapes[0].kind
	for _, s := range shapes[1:] {
		if s.kind != kind {
			kind = ""
			break
		}
	}

	// members share one layout, so the multi geometries are assembled flat
	var (
		flat  []float64
		ends  []int
		endss [][]int
	)
	switch kind {
	case "Point":
		for _, s := range shapes {
			flat = append(flat, build(s).FlatCoords()...)
		}
		return geom.NewMultiPointFlat(layout, flat)
	case "LineString":
		for _, s := range shapes {
			flat = append(flat, build(s).FlatCoords()...)
			ends = append(ends, len(flat))
		}
		return geom.NewMultiLineStringFlat(layout, flat, ends)
	case "Polygon":
		for _, s := range shapes {
			poly := build(s).(*geom.Polygon)
			base := len(flat)
			flat = append(flat, poly.FlatCoords()...)
			ringEnds := make([]int, len(poly.Ends()))
			for i, e := range poly.Ends() {
				ringEnds[i] = base + e
			}
			endss = append(endss, ringEnds)
		}
		return geom.NewMultiPolygonFlat(layout, flat, endss)
	}

	gc := geom.NewGeometryCollection()
	for _, s := range shapes {
		gc.MustPush(build(s))
	}
	return gc
}

// kmzDocument returns the main KML document of a KMZ archive: doc.kml when
// present, the first .kml member otherwise.
func kmzDocument(data []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, err
	}

	var main *zip.File
	for _, f := range zr.File {
		if isMacOSXMember(f.Name) || !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		if strings.EqualFold(path.Base(f.Name), "doc.kml") {
			main = f
			break
		}
		if main == nil {
			main = f
		}
	}
	if main == nil {
		return "", nil, errors.New("no .kml file found in KMZ archive")
	}

	rc, err := main.Open()
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = rc.Close() }()

	doc, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, err
	}
	return main.Name, doc, nil
}

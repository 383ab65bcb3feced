package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/woozymasta/geoprep/internal/geo"
)

// shpFileCode is the big-endian file code opening every .shp file.
const shpFileCode = 9994

// Shapefile reads ESRI shapefiles, alone or bundled in a ZIP archive.
type Shapefile struct{}

// Info implements Converter.
func (Shapefile) Info() FormatInfo {
	return FormatInfo{
		Name:       "Shapefile",
		Extensions: []string{".shp", ".zip"},
		MIMETypes:  []string{"application/x-shapefile", "application/zip"},
		Available:  true,
	}
}

// shapeFiles holds the paths of a shapefile and its companions.
// Empty paths are missing companions.
type shapeFiles struct {
	shp, dbf, prj, cpg string
}

// Convert implements Converter.
func (c Shapefile) Convert(ctx context.Context, src Source, opts Options) (*Result, error) {
	name := c.Info().Name
	res := newResult(name)

	files, cleanup, err := stageShapefile(src, res)
	if err != nil {
		return nil, conversionErrorf(name, err, "open source")
	}
	defer cleanup()

	if err := checkShpHeader(files.shp); err != nil {
		return nil, conversionErrorf(name, err, "invalid shapefile")
	}

	dec, err := c.attributeDecoder(files, opts, res)
	if err != nil {
		return nil, conversionErrorf(name, err, "DBF encoding")
	}

	if files.dbf == "" {
		res.warnf("Missing .dbf file, attributes are empty")
	}
	if files.prj == "" {
		res.warnf("Missing .prj file, assuming WGS84 (EPSG:4326)")
	} else if wkt, err := os.ReadFile(files.prj); err == nil {
		crs := wktName(string(wkt))
		if crs == "" {
			crs = strings.TrimSpace(string(wkt))
		}
		res.Metadata["crs"] = crs
		if !isWGS84(string(wkt)) {
			res.warnf("CRS is %s, not WGS84. Data may need reprojection for web mapping.", crs)
		}
	}

	r, err := shp.Open(files.shp)
	if err != nil {
		return nil, conversionErrorf(name, err, "open shapefile")
	}
	defer func() { _ = r.Close() }()

	var (
		fields []shp.Field
		names  []string
		rows   int
	)
	if files.dbf != "" {
		fields = r.Fields()
		rows = r.AttributeCount()
		names = make([]string, len(fields))
		for i, f := range fields {
			names[i] = fieldName(f)
		}
	}
	res.Metadata["shape_type"] = shapeTypeName(r.GeometryType)
	res.Metadata["fields"] = names

	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, shape := r.Shape()
		g, err := shapeGeometry(shape)
		if err != nil {
			res.warnf("Record %d skipped: %v", row, err)
			continue
		}
		if g == nil {
			res.warnf("Record %d has null geometry, skipped", row)
			continue
		}

		props := make(map[string]any, len(fields))
		if row < rows {
			for i, f := range fields {
				props[names[i]] = dec.value(row, names[i], f, r.ReadAttribute(row, i))
			}
		}
		res.add(&geo.Feature{Geometry: g, Properties: props})
	}
	if err := r.Err(); err != nil {
		return nil, conversionErrorf(name, err, "read shapes")
	}

	return res, nil
}

func (Shapefile) attributeDecoder(files shapeFiles, opts Options, res *Result) (*dbfDecoder, error) {
	d := &dbfDecoder{res: res}

	label := opts.Encoding
	if label != "" {
		enc, err := lookupEncoding(label)
		if err != nil {
			return nil, err
		}
		d.enc = enc
	} else if files.cpg != "" {
		data, err := os.ReadFile(files.cpg)
		if err == nil {
			label = strings.TrimSpace(string(data))
			enc, err := lookupEncoding(label)
			if err != nil {
				res.warnf("Unknown .cpg encoding %q, reading attributes as UTF-8", label)
				label = ""
			} else {
				d.enc = enc
			}
		}
	}

	if label != "" {
		res.Metadata["encoding"] = label
	}
	return d, nil
}

// dbfDecoder turns raw DBF values into typed properties.
type dbfDecoder struct {
	res         *Result
	enc         encoding.Encoding
	warnedLatin bool
}

func (d *dbfDecoder) value(row int, name string, f shp.Field, raw string) any {
	raw = strings.TrimRight(raw, "\x00 ")

	switch f.Fieldtype {
	case 'N', 'F':
		s := strings.TrimSpace(raw)
		if s == "" || strings.Trim(s, "*") == "" {
			return nil
		}
		if f.Fieldtype == 'N' && f.Precision == 0 {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
		d.res.warnf("Record %d field %s: %q is not a number, kept as string", row, name, s)
		return s

	case 'L':
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "T", "Y":
			return true
		case "F", "N":
			return false
		}
		return nil

	case 'D':
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil
		}
		if len(s) == 8 && strings.Trim(s, "0123456789") == "" {
			return s[:4] + "-" + s[4:6] + "-" + s[6:]
		}
		return s
	}

	return d.text(raw)
}

func (d *dbfDecoder) text(raw string) string {
	if d.enc != nil {
		if s, err := d.enc.NewDecoder().String(raw); err == nil {
			return s
		}
		return raw
	}
	if utf8.ValidString(raw) {
		return raw
	}

	if !d.warnedLatin {
		d.res.warnf("Attribute values are not valid UTF-8, decoded as ISO-8859-1")
		d.warnedLatin = true
	}
	s, _ := charmap.ISO8859_1.NewDecoder().String(raw)
	return s
}

func fieldName(f shp.Field) string {
	name := f.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(string(name))
}

func checkShpHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var code int32
	if err := binary.Read(f, binary.BigEndian, &code); err != nil {
		return errors.Wrap(err, "read file code")
	}
	if code != shpFileCode {
		return errors.Errorf("unexpected file code %d", code)
	}
	return nil
}

// stageShapefile locates the shapefile and its companions. ZIP archives and
// in-memory data are unpacked into a temporary directory, and companions
// with non lower-case extensions are copied there as well, since the reader
// opens <base>.shp and <base>.dbf literally.
func stageShapefile(src Source, res *Result) (shapeFiles, func(), error) {
	noop := func() {}

	if _, ok := src.Value(); ok {
		return shapeFiles{}, noop, errors.New("shapefiles can only be read from files or bytes")
	}

	if src.path != "" && !src.isZip(".zip") {
		files, err := findCompanions(src.path)
		if err != nil {
			return shapeFiles{}, noop, err
		}
		if files.canonical() {
			return files, noop, nil
		}
		return copyShapefile(files)
	}

	data, err := src.ReadAll()
	if err != nil {
		return shapeFiles{}, noop, err
	}

	dir, err := os.MkdirTemp("", "geoprep-shp-*")
	if err != nil {
		return shapeFiles{}, noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	var files shapeFiles
	if bytes.HasPrefix(data, zipMagic) {
		files, err = extractShapefile(data, dir, res)
	} else {
		files.shp = filepath.Join(dir, "layer.shp")
		err = os.WriteFile(files.shp, data, 0600)
	}
	if err != nil {
		cleanup()
		return shapeFiles{}, noop, err
	}

	return files, cleanup, nil
}

func findCompanions(shpPath string) (shapeFiles, error) {
	if _, err := os.Stat(shpPath); err != nil {
		return shapeFiles{}, err
	}

	files := shapeFiles{shp: shpPath}
	dir := filepath.Dir(shpPath)
	stem := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return shapeFiles{}, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !strings.EqualFold(strings.TrimSuffix(e.Name(), ext), stem) {
			continue
		}
		files.set(strings.ToLower(ext), filepath.Join(dir, e.Name()))
	}
	files.shp = shpPath

	return files, nil
}

func (s *shapeFiles) set(ext, p string) {
	switch ext {
	case ".shp":
		if s.shp == "" {
			s.shp = p
		}
	case ".dbf":
		s.dbf = p
	case ".prj":
		s.prj = p
	case ".cpg":
		s.cpg = p
	}
}

// canonical reports whether the reader can open the files in place.
func (s shapeFiles) canonical() bool {
	if !strings.HasSuffix(s.shp, ".shp") {
		return false
	}
	return s.dbf == "" || s.dbf == strings.TrimSuffix(s.shp, "shp")+"dbf"
}

func copyShapefile(files shapeFiles) (shapeFiles, func(), error) {
	dir, err := os.MkdirTemp("", "geoprep-shp-*")
	if err != nil {
		return shapeFiles{}, func() {}, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	var out shapeFiles
	for ext, p := range map[string]string{".shp": files.shp, ".dbf": files.dbf, ".prj": files.prj, ".cpg": files.cpg} {
		if p == "" {
			continue
		}
		dst := filepath.Join(dir, "layer"+ext)
		if err := copyFile(p, dst); err != nil {
			cleanup()
			return shapeFiles{}, func() {}, err
		}
		out.set(ext, dst)
	}

	return out, cleanup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func isMacOSXMember(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.Contains(name, "/__MACOSX/")
}

// extractShapefile unpacks the first shapefile of a ZIP archive and its
// companions into dir.
func extractShapefile(data []byte, dir string, res *Result) (shapeFiles, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return shapeFiles{}, errors.Wrap(err, "open ZIP archive")
	}

	var members []string
	for _, f := range zr.File {
		if !isMacOSXMember(f.Name) && strings.EqualFold(path.Ext(f.Name), ".shp") {
			members = append(members, f.Name)
		}
	}
	if len(members) == 0 {
		return shapeFiles{}, errors.New("no .shp file found in ZIP archive")
	}
	if len(members) > 1 {
		res.warnf("ZIP archive holds %d shapefiles, using %s", len(members), members[0])
	}
	res.Metadata["archive_member"] = members[0]
	stem := strings.TrimSuffix(members[0], path.Ext(members[0]))

	var files shapeFiles
	for _, f := range zr.File {
		ext := path.Ext(f.Name)
		if isMacOSXMember(f.Name) || !strings.EqualFold(strings.TrimSuffix(f.Name, ext), stem) {
			continue
		}
		ext = strings.ToLower(ext)
		switch ext {
		case ".shp", ".dbf", ".prj", ".cpg":
		default:
			continue
		}

		dst := filepath.Join(dir, "layer"+ext)
		if err := extractMember(f, dst); err != nil {
			return shapeFiles{}, err
		}
		files.set(ext, dst)
	}

	return files, nil
}

func extractMember(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "open %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "extract %s", f.Name)
	}
	return out.Close()
}

func shapeGeometry(s shp.Shape) (geom.T, error) {
	switch s := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XYZ, []float64{s.X, s.Y, s.Z}), nil
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.MultiPoint:
		return multiPointGeometry(s.Points, nil), nil
	case *shp.MultiPointZ:
		return multiPointGeometry(s.Points, s.ZArray), nil
	case *shp.MultiPointM:
		return multiPointGeometry(s.Points, nil), nil
	case *shp.PolyLine:
		return lineGeometry(s.Parts, s.Points, nil)
	case *shp.PolyLineZ:
		return lineGeometry(s.Parts, s.Points, s.ZArray)
	case *shp.PolyLineM:
		return lineGeometry(s.Parts, s.Points, nil)
	case *shp.Polygon:
		return polygonGeometry(s.Parts, s.Points, nil)
	case *shp.PolygonZ:
		return polygonGeometry(s.Parts, s.Points, s.ZArray)
	case *shp.PolygonM:
		return polygonGeometry(s.Parts, s.Points, nil)
	}
	return nil, errors.Errorf("unsupported shape %T", s)
}

func pointLayout(points []shp.Point, z []float64) geom.Layout {
	if len(z) > 0 && len(z) == len(points) {
		return geom.XYZ
	}
	return geom.XY
}

func flatPoints(points []shp.Point, z []float64, layout geom.Layout) []float64 {
	flat := make([]float64, 0, len(points)*layout.Stride())
	for i, p := range points {
		flat = append(flat, p.X, p.Y)
		if layout == geom.XYZ {
			flat = append(flat, z[i])
		}
	}
	return flat
}

func multiPointGeometry(points []shp.Point, z []float64) geom.T {
	if len(points) == 0 {
		return nil
	}
	layout := pointLayout(points, z)
	return geom.NewMultiPointFlat(layout, flatPoints(points, z, layout))
}

// splitParts cuts the point array into parts as flat coordinate slices.
func splitParts(parts []int32, points []shp.Point, z []float64) ([][]float64, geom.Layout, error) {
	layout := pointLayout(points, z)
	flat := flatPoints(points, z, layout)
	stride := layout.Stride()

	out := make([][]float64, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || int(start) > end || end > len(points) {
			return nil, layout, errors.Errorf("part %d has invalid bounds [%d:%d]", i, start, end)
		}
		if int(start) == end {
			continue
		}
		out = append(out, flat[int(start)*stride:end*stride])
	}
	return out, layout, nil
}

func lineGeometry(parts []int32, points []shp.Point, z []float64) (geom.T, error) {
	lines, layout, err := splitParts(parts, points, z)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	if len(lines) == 1 {
		return geom.NewLineStringFlat(layout, lines[0]), nil
	}

	var flat []float64
	ends := make([]int, 0, len(lines))
	for _, l := range lines {
		flat = append(flat, l...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(layout, flat, ends), nil
}

// polygonGeometry groups shapefile rings into polygons. Clockwise rings are
// exteriors and counter-clockwise rings are holes of the exterior holding
// them. Output rings follow RFC 7946: exteriors counter-clockwise, holes
// clockwise.
func polygonGeometry(parts []int32, points []shp.Point, z []float64) (geom.T, error) {
	rings, layout, err := splitParts(parts, points, z)
	if err != nil || len(rings) == 0 {
		return nil, err
	}
	stride := layout.Stride()

	var (
		polys [][][]float64
		holes [][]float64
	)
	for _, r := range rings {
		area := geo.SignedArea(r, stride)
		switch {
		case area < 0:
			polys = append(polys, [][]float64{geo.Reverse(r, stride)})
		case area == 0:
			polys = append(polys, [][]float64{r})
		default:
			holes = append(holes, r)
		}
	}

	for _, h := range holes {
		owner := -1
		for i, p := range polys {
			if geo.RingContains(p[0], stride, h[0], h[1]) {
				owner = i
				break
			}
		}
		if owner < 0 {
			// a counter-clockwise ring outside every exterior is an exterior itself
			polys = append(polys, [][]float64{h})
			continue
		}
		polys[owner] = append(polys[owner], geo.Reverse(h, stride))
	}

	var flat []float64
	endss := make([][]int, 0, len(polys))
	for _, p := range polys {
		ends := make([]int, 0, len(p))
		for _, r := range p {
			flat = append(flat, r...)
			ends = append(ends, len(flat))
		}
		endss = append(endss, ends)
	}

	if len(polys) == 1 {
		return geom.NewPolygonFlat(layout, flat, endss[0]), nil
	}
	return geom.NewMultiPolygonFlat(layout, flat, endss), nil
}

func shapeTypeName(t shp.ShapeType) string {
	switch t {
	case shp.NULL:
		return "Null"
	case shp.POINT:
		return "Point"
	case shp.POLYLINE:
		return "PolyLine"
	case shp.POLYGON:
		return "Polygon"
	case shp.MULTIPOINT:
		return "MultiPoint"
	case shp.POINTZ:
		return "PointZ"
	case shp.POLYLINEZ:
		return "PolyLineZ"
	case shp.POLYGONZ:
		return "PolygonZ"
	case shp.MULTIPOINTZ:
		return "MultiPointZ"
	case shp.POINTM:
		return "PointM"
	case shp.POLYLINEM:
		return "PolyLineM"
	case shp.POLYGONM:
		return "PolygonM"
	case shp.MULTIPOINTM:
		return "MultiPointM"
	case shp.MULTIPATCH:
		return "MultiPatch"
	}
	return "Unknown(" + strconv.Itoa(int(t)) + ")"
}

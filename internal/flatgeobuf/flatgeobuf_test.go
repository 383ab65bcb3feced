package flatgeobuf

import (
	"bytes"
	"io"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func readAll(t *testing.T, data []byte) (*Header, []*Feature) {
	t.Helper()
	r, err := NewReader(data)
	require.NoError(t, err)

	var out []*Feature
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, f)
	}
	return r.Header(), out
}

func TestWriteReadRoundTrip(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		{{1, 1}, {1, 2}, {2, 2}, {1, 1}},
	})
	mpoly := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}},
	})
	features := []*Feature{
		{Geometry: geom.NewPointFlat(geom.XY, []float64{30.5, 50.25}), Properties: map[string]any{"name": "Kyiv", "pop": int64(2950000), "capital": true}},
		{Geometry: geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1, 2, 0}), Properties: map[string]any{"name": "road", "len": 2.83}},
		{Geometry: poly, Properties: map[string]any{"tags": map[string]any{"k": "v"}}},
		{Geometry: mpoly},
		{Geometry: geom.NewMultiLineStringFlat(geom.XY, []float64{0, 0, 1, 1, 5, 5, 6, 6, 7, 7}, []int{4, 10})},
		{Geometry: geom.NewMultiPointFlat(geom.XY, []float64{1, 2, 3, 4})},
		{Geometry: nil, Properties: map[string]any{"name": "nowhere"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{Name: "mixed", CRS: &CRS{Code: 4326}}, features))

	h, got := readAll(t, buf.Bytes())
	assert.Equal(t, "mixed", h.Name)
	assert.Equal(t, uint64(len(features)), h.FeaturesCount)
	assert.Equal(t, uint16(0), h.IndexNodeSize)
	assert.Equal(t, "EPSG:4326", h.CRS.String())
	assert.Equal(t, []Column{
		{Name: "capital", Type: ColumnBool},
		{Name: "len", Type: ColumnDouble},
		{Name: "name", Type: ColumnString},
		{Name: "pop", Type: ColumnLong},
		{Name: "tags", Type: ColumnJSON},
	}, h.Columns)

	require.Len(t, got, len(features))
	for i, want := range features {
		if want.Geometry == nil {
			assert.Nil(t, got[i].Geometry)
			continue
		}
		assert.IsType(t, want.Geometry, got[i].Geometry, "feature %d", i)
		assert.Equal(t, want.Geometry.FlatCoords(), got[i].Geometry.FlatCoords(), "feature %d", i)
	}

	assert.Equal(t, "Kyiv", got[0].Properties["name"])
	assert.Equal(t, int64(2950000), got[0].Properties["pop"])
	assert.Equal(t, true, got[0].Properties["capital"])
	assert.Equal(t, 2.83, got[1].Properties["len"])
	assert.Equal(t, map[string]any{"k": "v"}, got[2].Properties["tags"])
	assert.Equal(t, poly.Ends(), got[2].Geometry.Ends())
	assert.Equal(t, 2, got[3].Geometry.(*geom.MultiPolygon).NumPolygons())
	assert.Equal(t, []int{4, 10}, got[4].Geometry.Ends())
	assert.Equal(t, "nowhere", got[6].Properties["name"])
}

func TestWriteReadXYZ(t *testing.T) {
	features := []*Feature{
		{Geometry: geom.NewLineStringFlat(geom.XYZ, []float64{0, 0, 10, 1, 1, 20})},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{GeometryType: LineString}, features))

	h, got := readAll(t, buf.Bytes())
	assert.True(t, h.HasZ)
	assert.Equal(t, LineString, h.GeometryType)
	assert.Equal(t, geom.XYZ, got[0].Geometry.Layout())
	assert.Equal(t, []float64{0, 0, 10, 1, 1, 20}, got[0].Geometry.FlatCoords())
}

func TestGeometryCollectionParts(t *testing.T) {
	gc := geom.NewGeometryCollection().MustPush(
		geom.NewPointFlat(geom.XY, []float64{1, 1}),
		geom.NewLineStringFlat(geom.XY, []float64{0, 0, 2, 2}),
	)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{}, []*Feature{{Geometry: gc}}))

	_, got := readAll(t, buf.Bytes())
	out, ok := got[0].Geometry.(*geom.GeometryCollection)
	require.True(t, ok)
	require.Equal(t, 2, out.NumGeoms())
	assert.IsType(t, &geom.Point{}, out.Geom(0))
	assert.IsType(t, &geom.LineString{}, out.Geom(1))
}

// indexedFile builds a point file announcing a spatial index of the given node size.
func indexedFile(t *testing.T, points [][2]float64, nodeSize uint16) []byte {
	t.Helper()

	b := flatbuffers.NewBuilder(0)
	b.StartObject(14)
	b.PrependByteSlot(2, byte(Point), 0)
	b.PrependUint64Slot(8, uint64(len(points)), 0)
	b.PrependUint16Slot(9, nodeSize, 16)
	b.FinishSizePrefixed(b.EndObject())

	var buf bytes.Buffer
	buf.Write(Magic)
	buf.Write(b.FinishedBytes())

	size, err := PackedRTreeSize(uint64(len(points)), nodeSize)
	require.NoError(t, err)
	buf.Write(make([]byte, size))

	for _, p := range points {
		data, err := encodeFeature(&Feature{Geometry: geom.NewPointFlat(geom.XY, p[:])}, &Header{GeometryType: Point})
		require.NoError(t, err)
		buf.Write(data)
	}
	return buf.Bytes()
}

func TestReaderSkipsIndex(t *testing.T) {
	data := indexedFile(t, [][2]float64{{1, 2}, {3, 4}, {5, 6}}, 16)

	h, got := readAll(t, data)
	assert.Equal(t, uint16(16), h.IndexNodeSize)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 6}, got[2].Geometry.FlatCoords())
}

func TestPackedRTreeSize(t *testing.T) {
	tests := []struct {
		items    uint64
		nodeSize uint16
		want     uint64
	}{
		{0, 16, 0},
		{1, 16, 40},
		{3, 16, 4 * 40},
		{100, 16, (100 + 7 + 1) * 40},
		{4, 2, (4 + 2 + 1) * 40},
	}
	for _, tt := range tests {
		got, err := PackedRTreeSize(tt.items, tt.nodeSize)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "items=%d node=%d", tt.items, tt.nodeSize)
	}

	_, err := PackedRTreeSize(10, 1)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestReaderRejectsBadInput(t *testing.T) {
	_, err := NewReader([]byte("not a flatgeobuf file"))
	assert.ErrorIs(t, err, ErrInvalidMagic)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{}, []*Feature{
		{Geometry: geom.NewPointFlat(geom.XY, []float64{1, 2})},
	}))
	data := buf.Bytes()

	_, err = NewReader(data[:len(Magic)+6])
	assert.ErrorIs(t, err, ErrInvalidData)

	r, err := NewReader(data[:len(data)-3])
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestDecodePropertiesErrors(t *testing.T) {
	columns := []Column{{Name: "a", Type: ColumnInt}}

	_, err := decodeProperties([]byte{5, 0, 1, 0, 0, 0}, columns)
	assert.ErrorIs(t, err, ErrInvalidColumn)

	_, err = decodeProperties([]byte{0, 0, 1}, columns)
	assert.ErrorIs(t, err, ErrInvalidData)

	props, err := decodeProperties([]byte{0, 0, 7, 0, 0, 0}, columns)
	require.NoError(t, err)
	assert.Equal(t, int64(7), props["a"])
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "MultiPolygon", MultiPolygon.String())
	assert.Equal(t, "Json", ColumnJSON.String())
	assert.Equal(t, "GeometryType(42)", GeometryType(42).String())
	assert.Equal(t, "", (*CRS)(nil).String())
	assert.Equal(t, "OGC:CRS84", (&CRS{Org: "OGC", CodeString: "CRS84"}).String())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, Point, TypeOf(geom.NewPointFlat(geom.XY, []float64{1, 2})))
	assert.Equal(t, MultiPolygon, TypeOf(geom.NewMultiPolygon(geom.XY)))
	assert.Equal(t, GeometryCollection, TypeOf(geom.NewGeometryCollection()))
	assert.Equal(t, Unknown, TypeOf(nil))
}

// curveFeature encodes a feature whose geometry carries a type the reader does not decode.
func curveFeature(t *testing.T) []byte {
	t.Helper()

	b := flatbuffers.NewBuilder(0)
	b.StartVector(8, 4, 8)
	for _, v := range []float64{3, 2, 1, 0} {
		b.PrependFloat64(v)
	}
	xy := b.EndVector(4)

	b.StartObject(8)
	b.PrependUOffsetTSlot(1, xy, 0)
	b.PrependByteSlot(6, 9, 0) // CircularString
	g := b.EndObject()

	b.StartObject(3)
	b.PrependUOffsetTSlot(0, g, 0)
	b.FinishSizePrefixed(b.EndObject())
	return b.FinishedBytes()
}

func TestReaderRecordError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{}, []*Feature{
		{Geometry: geom.NewPointFlat(geom.XY, []float64{1, 2})},
	}))
	buf.Write(curveFeature(t))
	last, err := encodeFeature(&Feature{Geometry: geom.NewPointFlat(geom.XY, []float64{5, 6})}, &Header{})
	require.NoError(t, err)
	buf.Write(last)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, f.Geometry.FlatCoords())

	_, err = r.Next()
	var re *RecordError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, f.Geometry.FlatCoords())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

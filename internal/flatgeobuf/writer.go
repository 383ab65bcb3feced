package flatgeobuf

import (
	"io"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

// Write encodes features as a FlatGeobuf file without a spatial index.
// Columns are inferred from the feature properties when h.Columns is empty,
// and FeaturesCount is always set to len(features).
func Write(w io.Writer, h Header, features []*Feature) error {
	if len(h.Columns) == 0 {
		h.Columns = inferColumns(features)
	}
	h.FeaturesCount = uint64(len(features))
	for _, f := range features {
		if f.Geometry != nil && f.Geometry.Layout().ZIndex() >= 0 {
			h.HasZ = true
		}
	}

	if _, err := w.Write(Magic); err != nil {
		return err
	}
	if _, err := w.Write(encodeHeader(&h)); err != nil {
		return err
	}

	for i, f := range features {
		data, err := encodeFeature(f, &h)
		if err != nil {
			return errors.Wrapf(err, "flatgeobuf: feature %d", i)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}

func inferColumns(features []*Feature) []Column {
	types := map[string]ColumnType{}
	for _, f := range features {
		for k, v := range f.Properties {
			if _, ok := types[k]; ok || v == nil {
				continue
			}
			types[k] = inferColumnType(v)
		}
	}

	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)

	columns := make([]Column, 0, len(names))
	for _, name := range names {
		columns = append(columns, Column{Name: name, Type: types[name]})
	}
	return columns
}

func encodeHeader(h *Header) []byte {
	b := flatbuffers.NewBuilder(1024)

	columns := make([]flatbuffers.UOffsetT, len(h.Columns))
	for i, c := range h.Columns {
		name := b.CreateString(c.Name)
		b.StartObject(11)
		b.PrependUOffsetTSlot(0, name, 0)
		b.PrependByteSlot(1, byte(c.Type), 0)
		columns[i] = b.EndObject()
	}
	columnsVec := b.CreateVectorOfTables(columns)

	var crs flatbuffers.UOffsetT
	if h.CRS != nil {
		org := b.CreateString(h.CRS.Org)
		name := b.CreateString(h.CRS.Name)
		wkt := b.CreateString(h.CRS.WKT)
		b.StartObject(6)
		b.PrependUOffsetTSlot(0, org, 0)
		b.PrependInt32Slot(1, int32(h.CRS.Code), 0)
		b.PrependUOffsetTSlot(2, name, 0)
		b.PrependUOffsetTSlot(4, wkt, 0)
		crs = b.EndObject()
	}

	name := b.CreateString(h.Name)
	title := b.CreateString(h.Title)
	description := b.CreateString(h.Description)

	b.StartObject(14)
	b.PrependUOffsetTSlot(0, name, 0)
	b.PrependByteSlot(2, byte(h.GeometryType), 0)
	b.PrependBoolSlot(3, h.HasZ, false)
	b.PrependUOffsetTSlot(7, columnsVec, 0)
	b.PrependUint64Slot(8, h.FeaturesCount, 0)
	// 0 disables the index, the default of 16 would announce one
	b.PrependUint16Slot(9, 0, 16)
	if h.CRS != nil {
		b.PrependUOffsetTSlot(10, crs, 0)
	}
	b.PrependUOffsetTSlot(11, title, 0)
	b.PrependUOffsetTSlot(12, description, 0)
	b.FinishSizePrefixed(b.EndObject())

	return b.FinishedBytes()
}

func encodeFeature(f *Feature, h *Header) ([]byte, error) {
	b := flatbuffers.NewBuilder(1024)

	var geometry flatbuffers.UOffsetT
	if f.Geometry != nil {
		var err error
		geometry, err = encodeGeometry(b, f.Geometry, h.GeometryType == Unknown)
		if err != nil {
			return nil, err
		}
	}

	props, err := encodeProperties(f.Properties, h.Columns)
	if err != nil {
		return nil, err
	}
	var propsVec flatbuffers.UOffsetT
	if len(props) > 0 {
		propsVec = b.CreateByteVector(props)
	}

	b.StartObject(3)
	if f.Geometry != nil {
		b.PrependUOffsetTSlot(0, geometry, 0)
	}
	if len(props) > 0 {
		b.PrependUOffsetTSlot(1, propsVec, 0)
	}
	b.FinishSizePrefixed(b.EndObject())

	return b.FinishedBytes(), nil
}

func encodeGeometry(b *flatbuffers.Builder, g geom.T, withType bool) (flatbuffers.UOffsetT, error) {
	var (
		t     GeometryType
		parts []flatbuffers.UOffsetT
		ends  []int
	)

	switch g := g.(type) {
	case *geom.Point:
		t = Point
	case *geom.MultiPoint:
		t = MultiPoint
	case *geom.LineString:
		t = LineString
	case *geom.MultiLineString:
		t, ends = MultiLineString, g.Ends()
	case *geom.Polygon:
		t, ends = Polygon, g.Ends()
	case *geom.MultiPolygon:
		t = MultiPolygon
		for i := 0; i < g.NumPolygons(); i++ {
			p, err := encodeGeometry(b, g.Polygon(i), false)
			if err != nil {
				return 0, err
			}
			parts = append(parts, p)
		}
	case *geom.GeometryCollection:
		t = GeometryCollection
		for _, child := range g.Geoms() {
			p, err := encodeGeometry(b, child, true)
			if err != nil {
				return 0, err
			}
			parts = append(parts, p)
		}
	default:
		return 0, errors.Wrapf(ErrUnsupportedType, "%T", g)
	}

	var partsVec, endsVec, xyVec, zVec flatbuffers.UOffsetT
	if parts != nil {
		partsVec = b.CreateVectorOfTables(parts)
	} else {
		stride := g.Stride()
		flat := g.FlatCoords()
		n := 0
		if stride > 0 {
			n = len(flat) / stride
		}

		if len(ends) > 1 {
			b.StartVector(4, len(ends), 4)
			for i := len(ends) - 1; i >= 0; i-- {
				b.PrependUint32(uint32(ends[i] / stride))
			}
			endsVec = b.EndVector(len(ends))
		}

		b.StartVector(8, n*2, 8)
		for i := n - 1; i >= 0; i-- {
			b.PrependFloat64(flat[i*stride+1])
			b.PrependFloat64(flat[i*stride])
		}
		xyVec = b.EndVector(n * 2)

		if zi := g.Layout().ZIndex(); zi >= 0 {
			b.StartVector(8, n, 8)
			for i := n - 1; i >= 0; i-- {
				b.PrependFloat64(flat[i*stride+zi])
			}
			zVec = b.EndVector(n)
		}
	}

	b.StartObject(8)
	if endsVec != 0 {
		b.PrependUOffsetTSlot(0, endsVec, 0)
	}
	if xyVec != 0 {
		b.PrependUOffsetTSlot(1, xyVec, 0)
	}
	if zVec != 0 {
		b.PrependUOffsetTSlot(2, zVec, 0)
	}
	if withType {
		b.PrependByteSlot(6, byte(t), 0)
	}
	if partsVec != 0 {
		b.PrependUOffsetTSlot(7, partsVec, 0)
	}
	return b.EndObject(), nil
}

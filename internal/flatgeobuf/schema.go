package flatgeobuf

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// Table accessors for the FlatGeobuf schema (header.fbs, feature.fbs).
// Vtable slots are 4 + 2*field index.

type headerTable struct {
	_tab flatbuffers.Table
}

func rootHeader(buf []byte) *headerTable {
	h := &headerTable{}
	h._tab.Bytes = buf
	h._tab.Pos = flatbuffers.GetUOffsetT(buf)
	return h
}

func (h *headerTable) name() string        { return tableString(&h._tab, 4) }
func (h *headerTable) title() string       { return tableString(&h._tab, 26) }
func (h *headerTable) description() string { return tableString(&h._tab, 28) }

func (h *headerTable) envelope() []float64 {
	o := flatbuffers.UOffsetT(h._tab.Offset(6))
	if o == 0 {
		return nil
	}
	n := h._tab.VectorLen(o)
	start := h._tab.Vector(o)
	out := make([]float64, n)
	for i := range out {
		out[i] = h._tab.GetFloat64(start + flatbuffers.UOffsetT(i*8))
	}
	return out
}

func (h *headerTable) geometryType() GeometryType {
	return GeometryType(h._tab.GetByteSlot(8, 0))
}

func (h *headerTable) hasZ() bool { return h._tab.GetBoolSlot(10, false) }

func (h *headerTable) columnsLength() int {
	o := flatbuffers.UOffsetT(h._tab.Offset(18))
	if o == 0 {
		return 0
	}
	return h._tab.VectorLen(o)
}

func (h *headerTable) column(j int) *columnTable {
	o := flatbuffers.UOffsetT(h._tab.Offset(18))
	x := h._tab.Vector(o) + flatbuffers.UOffsetT(j*4)
	c := &columnTable{}
	c._tab.Bytes = h._tab.Bytes
	c._tab.Pos = h._tab.Indirect(x)
	return c
}

func (h *headerTable) featuresCount() uint64 { return h._tab.GetUint64Slot(20, 0) }

func (h *headerTable) indexNodeSize() uint16 { return h._tab.GetUint16Slot(22, 16) }

func (h *headerTable) crs() *crsTable {
	o := flatbuffers.UOffsetT(h._tab.Offset(24))
	if o == 0 {
		return nil
	}
	c := &crsTable{}
	c._tab.Bytes = h._tab.Bytes
	c._tab.Pos = h._tab.Indirect(o + h._tab.Pos)
	return c
}

type columnTable struct {
	_tab flatbuffers.Table
}

func (c *columnTable) name() string { return tableString(&c._tab, 4) }

func (c *columnTable) columnType() ColumnType {
	return ColumnType(c._tab.GetByteSlot(6, 0))
}

type crsTable struct {
	_tab flatbuffers.Table
}

func (c *crsTable) org() string         { return tableString(&c._tab, 4) }
func (c *crsTable) code() int32         { return c._tab.GetInt32Slot(6, 0) }
func (c *crsTable) name() string        { return tableString(&c._tab, 8) }
func (c *crsTable) description() string { return tableString(&c._tab, 10) }
func (c *crsTable) wkt() string         { return tableString(&c._tab, 12) }
func (c *crsTable) codeString() string  { return tableString(&c._tab, 14) }

type featureTable struct {
	_tab flatbuffers.Table
}

func rootFeature(buf []byte) *featureTable {
	f := &featureTable{}
	f._tab.Bytes = buf
	f._tab.Pos = flatbuffers.GetUOffsetT(buf)
	return f
}

func (f *featureTable) geometry() *geometryTable {
	o := flatbuffers.UOffsetT(f._tab.Offset(4))
	if o == 0 {
		return nil
	}
	g := &geometryTable{}
	g._tab.Bytes = f._tab.Bytes
	g._tab.Pos = f._tab.Indirect(o + f._tab.Pos)
	return g
}

func (f *featureTable) properties() []byte {
	o := flatbuffers.UOffsetT(f._tab.Offset(6))
	if o == 0 {
		return nil
	}
	return f._tab.ByteVector(o + f._tab.Pos)
}

func (f *featureTable) columnsLength() int {
	o := flatbuffers.UOffsetT(f._tab.Offset(8))
	if o == 0 {
		return 0
	}
	return f._tab.VectorLen(o)
}

func (f *featureTable) column(j int) *columnTable {
	o := flatbuffers.UOffsetT(f._tab.Offset(8))
	x := f._tab.Vector(o) + flatbuffers.UOffsetT(j*4)
	c := &columnTable{}
	c._tab.Bytes = f._tab.Bytes
	c._tab.Pos = f._tab.Indirect(x)
	return c
}

type geometryTable struct {
	_tab flatbuffers.Table
}

func (g *geometryTable) ends() []uint32 {
	o := flatbuffers.UOffsetT(g._tab.Offset(4))
	if o == 0 {
		return nil
	}
	n := g._tab.VectorLen(o)
	start := g._tab.Vector(o)
	out := make([]uint32, n)
	for i := range out {
		out[i] = g._tab.GetUint32(start + flatbuffers.UOffsetT(i*4))
	}
	return out
}

func (g *geometryTable) xy() []float64 { return g.doubles(6) }
func (g *geometryTable) z() []float64  { return g.doubles(8) }

func (g *geometryTable) doubles(slot flatbuffers.VOffsetT) []float64 {
	o := flatbuffers.UOffsetT(g._tab.Offset(slot))
	if o == 0 {
		return nil
	}
	n := g._tab.VectorLen(o)
	start := g._tab.Vector(o)
	out := make([]float64, n)
	for i := range out {
		out[i] = g._tab.GetFloat64(start + flatbuffers.UOffsetT(i*8))
	}
	return out
}

func (g *geometryTable) geometryType() GeometryType {
	return GeometryType(g._tab.GetByteSlot(16, 0))
}

func (g *geometryTable) partsLength() int {
	o := flatbuffers.UOffsetT(g._tab.Offset(18))
	if o == 0 {
		return 0
	}
	return g._tab.VectorLen(o)
}

func (g *geometryTable) part(j int) *geometryTable {
	o := flatbuffers.UOffsetT(g._tab.Offset(18))
	x := g._tab.Vector(o) + flatbuffers.UOffsetT(j*4)
	p := &geometryTable{}
	p._tab.Bytes = g._tab.Bytes
	p._tab.Pos = g._tab.Indirect(x)
	return p
}

func tableString(t *flatbuffers.Table, slot flatbuffers.VOffsetT) string {
	o := flatbuffers.UOffsetT(t.Offset(slot))
	if o == 0 {
		return ""
	}
	return string(t.ByteVector(o + t.Pos))
}

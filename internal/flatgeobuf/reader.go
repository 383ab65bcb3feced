package flatgeobuf

import (
	"bytes"
	"fmt"
	"io"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

// nodeItemSize is the size of one packed R-tree node: envelope plus offset.
const nodeItemSize = 40

// Feature is one decoded record. A nil Geometry means the record had none.
type Feature struct {
	Geometry   geom.T
	Properties map[string]any
}

// Reader iterates over the features of an in-memory FlatGeobuf file.
type Reader struct {
	data   []byte
	header *Header
	offset int
}

// NewReader validates the magic bytes, decodes the header and positions the
// reader on the first feature, skipping the spatial index when present.
func NewReader(data []byte) (r *Reader, err error) {
	defer recoverInvalid(&err)

	if len(data) < len(Magic)+4 ||
		!bytes.Equal(data[:3], Magic[:3]) ||
		!bytes.Equal(data[4:7], Magic[4:7]) ||
		data[3] != Magic[3] {
		return nil, ErrInvalidMagic
	}

	size := int(flatbuffers.GetUint32(data[len(Magic):]))
	start := len(Magic) + 4
	if size == 0 || start+size > len(data) {
		return nil, errors.Wrapf(ErrInvalidData, "header size %d exceeds file size %d", size, len(data))
	}

	header := decodeHeader(rootHeader(data[start : start+size]))
	offset := start + size

	if header.IndexNodeSize > 0 && header.FeaturesCount > 0 {
		indexSize, err := PackedRTreeSize(header.FeaturesCount, header.IndexNodeSize)
		if err != nil {
			return nil, err
		}
		offset += int(indexSize)
		if offset > len(data) {
			return nil, errors.Wrap(ErrInvalidData, "spatial index exceeds file size")
		}
	}

	return &Reader{data: data, header: header, offset: offset}, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() *Header {
	return r.header
}

// RecordError reports a feature record that could not be decoded. The
// reader has already moved past it, so iteration may continue.
type RecordError struct {
	Offset int
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("flatgeobuf: feature at offset %d: %v", e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Cause returns the decoding error for errors.Cause.
func (e *RecordError) Cause() error { return e.Err }

// Next decodes the next feature. It returns io.EOF after the last one.
// Framing errors are fatal; a record that fails to decode is reported as
// *RecordError.
func (r *Reader) Next() (*Feature, error) {
	if r.offset >= len(r.data) {
		return nil, io.EOF
	}

	if r.offset+4 > len(r.data) {
		return nil, errors.Wrap(ErrInvalidData, "truncated feature size")
	}
	size := int(flatbuffers.GetUint32(r.data[r.offset:]))
	start := r.offset + 4
	if size < 0 || start+size > len(r.data) {
		return nil, errors.Wrapf(ErrInvalidData, "feature at offset %d is truncated", r.offset)
	}
	offset := r.offset
	r.offset = start + size

	f, err := r.decodeFeature(r.data[start : start+size])
	if err != nil {
		return nil, &RecordError{Offset: offset, Err: err}
	}
	return f, nil
}

func (r *Reader) decodeFeature(data []byte) (f *Feature, err error) {
	defer recoverInvalid(&err)

	ft := rootFeature(data)

	columns := r.header.Columns
	if n := ft.columnsLength(); n > 0 {
		columns = make([]Column, n)
		for i := range columns {
			c := ft.column(i)
			columns[i] = Column{Name: c.name(), Type: c.columnType()}
		}
	}

	props, err := decodeProperties(ft.properties(), columns)
	if err != nil {
		return nil, err
	}

	f = &Feature{Properties: props}
	if g := ft.geometry(); g != nil {
		f.Geometry, err = decodeGeometry(g, r.header.GeometryType, r.header.HasZ)
		if err != nil {
			return nil, err
		}
	}

	return f, nil
}

// PackedRTreeSize returns the byte size of a packed Hilbert R-tree holding
// numItems entries with the given node size.
func PackedRTreeSize(numItems uint64, nodeSize uint16) (uint64, error) {
	if nodeSize < 2 {
		return 0, errors.Wrapf(ErrInvalidData, "index node size %d", nodeSize)
	}
	if numItems == 0 {
		return 0, nil
	}

	n := numItems
	numNodes := n
	for n != 1 {
		n = (n + uint64(nodeSize) - 1) / uint64(nodeSize)
		numNodes += n
	}
	return numNodes * nodeItemSize, nil
}

func decodeHeader(h *headerTable) *Header {
	out := &Header{
		Name:          h.name(),
		Title:         h.title(),
		Description:   h.description(),
		GeometryType:  h.geometryType(),
		HasZ:          h.hasZ(),
		FeaturesCount: h.featuresCount(),
		IndexNodeSize: h.indexNodeSize(),
		Envelope:      h.envelope(),
	}

	if c := h.crs(); c != nil {
		out.CRS = &CRS{
			Org:         c.org(),
			Code:        int(c.code()),
			CodeString:  c.codeString(),
			Name:        c.name(),
			Description: c.description(),
			WKT:         c.wkt(),
		}
	}

	n := h.columnsLength()
	out.Columns = make([]Column, n)
	for i := range out.Columns {
		c := h.column(i)
		out.Columns[i] = Column{Name: c.name(), Type: c.columnType()}
	}

	return out
}

// recoverInvalid turns out-of-range reads on corrupt buffers into ErrInvalidData.
func recoverInvalid(err *error) {
	if r := recover(); r != nil {
		*err = errors.Wrapf(ErrInvalidData, "%v", r)
	}
}

package flatgeobuf

import (
	"encoding/binary"
	"math"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// decodeProperties reads the (column index, value) pairs of a feature.
// Variable length values carry a uint32 length prefix.
func decodeProperties(buf []byte, columns []Column) (map[string]any, error) {
	props := make(map[string]any, len(columns))

	need := func(off, n int) error {
		if off+n > len(buf) {
			return errors.Wrapf(ErrInvalidData, "property buffer truncated at %d", off)
		}
		return nil
	}

	for off := 0; off < len(buf); {
		if err := need(off, 2); err != nil {
			return nil, err
		}
		i := int(flatbuffers.GetUint16(buf[off:]))
		off += 2
		if i >= len(columns) {
			return nil, errors.Wrapf(ErrInvalidColumn, "column index %d of %d", i, len(columns))
		}
		col := columns[i]

		size := fixedSize(col.Type)
		if size == 0 {
			if err := need(off, 4); err != nil {
				return nil, err
			}
			size = int(flatbuffers.GetUint32(buf[off:]))
			off += 4
		}
		if err := need(off, size); err != nil {
			return nil, err
		}
		b := buf[off : off+size]
		off += size

		switch col.Type {
		case ColumnByte:
			props[col.Name] = int64(flatbuffers.GetInt8(b))
		case ColumnUByte:
			props[col.Name] = uint64(flatbuffers.GetUint8(b))
		case ColumnBool:
			props[col.Name] = flatbuffers.GetBool(b)
		case ColumnShort:
			props[col.Name] = int64(flatbuffers.GetInt16(b))
		case ColumnUShort:
			props[col.Name] = uint64(flatbuffers.GetUint16(b))
		case ColumnInt:
			props[col.Name] = int64(flatbuffers.GetInt32(b))
		case ColumnUInt:
			props[col.Name] = uint64(flatbuffers.GetUint32(b))
		case ColumnLong:
			props[col.Name] = flatbuffers.GetInt64(b)
		case ColumnULong:
			props[col.Name] = flatbuffers.GetUint64(b)
		case ColumnFloat:
			props[col.Name] = float64(flatbuffers.GetFloat32(b))
		case ColumnDouble:
			props[col.Name] = flatbuffers.GetFloat64(b)
		case ColumnString, ColumnDateTime:
			props[col.Name] = string(b)
		case ColumnJSON:
			var v any
			if err := json.Unmarshal(b, &v); err != nil {
				props[col.Name] = string(b)
			} else {
				props[col.Name] = v
			}
		case ColumnBinary:
			props[col.Name] = append([]byte(nil), b...)
		default:
			return nil, errors.Wrapf(ErrInvalidColumn, "column %q has type %s", col.Name, col.Type)
		}
	}

	return props, nil
}

// fixedSize returns the byte width of fixed size column types, zero otherwise.
func fixedSize(t ColumnType) int {
	switch t {
	case ColumnByte, ColumnUByte, ColumnBool:
		return 1
	case ColumnShort, ColumnUShort:
		return 2
	case ColumnInt, ColumnUInt, ColumnFloat:
		return 4
	case ColumnLong, ColumnULong, ColumnDouble:
		return 8
	}
	return 0
}

// encodeProperties is the inverse of decodeProperties. Nil values are omitted.
func encodeProperties(props map[string]any, columns []Column) ([]byte, error) {
	var buf []byte
	for i, col := range columns {
		v, ok := props[col.Name]
		if !ok || v == nil {
			continue
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(i))

		var err error
		buf, err = appendValue(buf, col, v)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendValue(buf []byte, col Column, v any) ([]byte, error) {
	le := binary.LittleEndian
	mismatch := errors.Wrapf(ErrInvalidColumn, "column %q (%s) cannot hold %T", col.Name, col.Type, v)

	switch col.Type {
	case ColumnBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case ColumnLong:
		n, ok := toInt64(v)
		if !ok {
			return nil, mismatch
		}
		return le.AppendUint64(buf, uint64(n)), nil

	case ColumnDouble:
		f, ok := toFloat64(v)
		if !ok {
			return nil, mismatch
		}
		return le.AppendUint64(buf, math.Float64bits(f)), nil

	case ColumnString, ColumnDateTime:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch
		}
		buf = le.AppendUint32(buf, uint32(len(s)))
		return append(buf, s...), nil

	case ColumnBinary:
		b, ok := v.([]byte)
		if !ok {
			return nil, mismatch
		}
		buf = le.AppendUint32(buf, uint32(len(b)))
		return append(buf, b...), nil

	case ColumnJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "flatgeobuf: column %q", col.Name)
		}
		buf = le.AppendUint32(buf, uint32(len(data)))
		return append(buf, data...), nil
	}

	return nil, errors.Wrapf(ErrInvalidColumn, "writing %s columns is not supported", col.Type)
}

// inferColumnType picks the column type used to write v.
func inferColumnType(v any) ColumnType {
	switch v.(type) {
	case bool:
		return ColumnBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return ColumnLong
	case float32, float64:
		return ColumnDouble
	case string:
		return ColumnString
	case []byte:
		return ColumnBinary
	}
	return ColumnJSON
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

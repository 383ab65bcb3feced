// Package flatgeobuf reads and writes FlatGeobuf files.
// Features are exposed as go-geom geometries with decoded property values.
package flatgeobuf

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
)

// Common errors returned by this package.
var (
	ErrInvalidMagic    = errors.New("flatgeobuf: invalid magic bytes")
	ErrInvalidData     = errors.New("flatgeobuf: invalid data")
	ErrUnsupportedType = errors.New("flatgeobuf: unsupported geometry type")
	ErrInvalidColumn   = errors.New("flatgeobuf: invalid column type")
)

// Magic is the file signature, major version 3.
var Magic = []byte{'f', 'g', 'b', 3, 'f', 'g', 'b', 0}

// GeometryType is the geometry type tag stored in headers and geometries.
type GeometryType uint8

// Geometry types known to the reader.
const (
	Unknown GeometryType = iota
	Point
	LineString
	Polygon
	MultiPoint
	MultiLineString
	MultiPolygon
	GeometryCollection
)

var geometryTypeNames = [...]string{
	"Unknown", "Point", "LineString", "Polygon",
	"MultiPoint", "MultiLineString", "MultiPolygon", "GeometryCollection",
}

func (t GeometryType) String() string {
	if int(t) < len(geometryTypeNames) {
		return geometryTypeNames[t]
	}
	return fmt.Sprintf("GeometryType(%d)", uint8(t))
}

// TypeOf returns the geometry type tag of g, Unknown for nil and unsupported values.
func TypeOf(g geom.T) GeometryType {
	switch g.(type) {
	case *geom.Point:
		return Point
	case *geom.MultiPoint:
		return MultiPoint
	case *geom.LineString:
		return LineString
	case *geom.MultiLineString:
		return MultiLineString
	case *geom.Polygon:
		return Polygon
	case *geom.MultiPolygon:
		return MultiPolygon
	case *geom.GeometryCollection:
		return GeometryCollection
	}
	return Unknown
}

// ColumnType is the storage type of a property column.
type ColumnType uint8

// Column types.
const (
	ColumnByte ColumnType = iota
	ColumnUByte
	ColumnBool
	ColumnShort
	ColumnUShort
	ColumnInt
	ColumnUInt
	ColumnLong
	ColumnULong
	ColumnFloat
	ColumnDouble
	ColumnString
	ColumnJSON
	ColumnDateTime
	ColumnBinary
)

var columnTypeNames = [...]string{
	"Byte", "UByte", "Bool", "Short", "UShort", "Int", "UInt", "Long",
	"ULong", "Float", "Double", "String", "Json", "DateTime", "Binary",
}

func (t ColumnType) String() string {
	if int(t) < len(columnTypeNames) {
		return columnTypeNames[t]
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// CRS represents a coordinate reference system.
type CRS struct {
	Org         string // Authority, EPSG when empty
	Code        int    // Authority code (e.g., 4326 for WGS84)
	CodeString  string // Non numeric authority code
	Name        string
	Description string
	WKT         string
}

func (c *CRS) String() string {
	if c == nil {
		return ""
	}
	org := c.Org
	if org == "" {
		org = "EPSG"
	}
	switch {
	case c.Code != 0:
		return fmt.Sprintf("%s:%d", org, c.Code)
	case c.CodeString != "":
		return org + ":" + c.CodeString
	case c.Name != "":
		return c.Name
	}
	return c.WKT
}

// Column describes a property column.
type Column struct {
	Name string
	Type ColumnType
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string
	Title         string
	Description   string
	GeometryType  GeometryType
	HasZ          bool
	FeaturesCount uint64
	IndexNodeSize uint16
	Envelope      []float64
	CRS           *CRS
	Columns       []Column
}

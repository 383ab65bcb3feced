//go:build geoparquet

package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/woozymasta/geoprep/internal/geo"
)

// GeoParquet reads Parquet files carrying GeoParquet "geo" metadata.
type GeoParquet struct{}

func newGeoParquet() Converter { return GeoParquet{} }

// Info implements Converter.
func (GeoParquet) Info() FormatInfo {
	return geoParquetInfo(true)
}

// geoMetadata is the "geo" key-value entry of a GeoParquet file.
type geoMetadata struct {
	Version       string                       `json:"version"`
	PrimaryColumn string                       `json:"primary_column"`
	Columns       map[string]geoColumnMetadata `json:"columns"`
}

type geoColumnMetadata struct {
	Encoding      string          `json:"encoding"`
	GeometryTypes []string        `json:"geometry_types"`
	CRS           json.RawMessage `json:"crs"`
}

// Convert implements Converter.
func (c GeoParquet) Convert(ctx context.Context, src Source, _ Options) (*Result, error) {
	name := c.Info().Name

	if _, ok := src.Value(); ok {
		return nil, conversionErrorf(name, nil, "GeoParquet can only be read from files or bytes")
	}
	data, err := src.ReadAll()
	if err != nil {
		return nil, conversionErrorf(name, err, "read source")
	}

	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, conversionErrorf(name, err, "open Parquet")
	}
	defer func() { _ = pf.Close() }()

	raw := pf.MetaData().KeyValueMetadata().FindValue("geo")
	if raw == nil {
		return nil, conversionErrorf(name, nil, "missing \"geo\" metadata, not a GeoParquet file")
	}
	var meta geoMetadata
	if err := json.Unmarshal([]byte(*raw), &meta); err != nil {
		return nil, conversionErrorf(name, err, "parse \"geo\" metadata")
	}

	primary := meta.PrimaryColumn
	colMeta, ok := meta.Columns[primary]
	if !ok {
		return nil, conversionErrorf(name, nil, "primary column %q has no metadata", primary)
	}
	if colMeta.Encoding != "" && colMeta.Encoding != "WKB" {
		return nil, conversionErrorf(name, nil, "geometry encoding %q is not supported, only WKB", colMeta.Encoding)
	}

	res := newResult(name)
	res.checkCRS(projJSONName(colMeta.CRS))
	res.Metadata["primary_column"] = primary
	res.Metadata["geo_version"] = meta.Version
	if len(colMeta.GeometryTypes) > 0 {
		res.Metadata["geometry_types"] = colMeta.GeometryTypes
	}

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 1024}, memory.DefaultAllocator)
	if err != nil {
		return nil, conversionErrorf(name, err, "open Arrow reader")
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, conversionErrorf(name, err, "read table")
	}
	defer tbl.Release()

	geomIdx := -1
	for i, f := range tbl.Schema().Fields() {
		if f.Name == primary {
			geomIdx = i
		}
	}
	if geomIdx < 0 {
		return nil, conversionErrorf(name, nil, "primary column %q not found", primary)
	}

	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	nulls, row := 0, 0
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i, row = i+1, row+1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			f := &geo.Feature{Properties: map[string]any{}}
			for j := 0; j < int(rec.NumCols()); j++ {
				col := rec.Column(j)
				if j != geomIdx {
					if !col.IsNull(i) {
						f.Properties[rec.ColumnName(j)] = col.GetOneForMarshal(i)
					} else {
						f.Properties[rec.ColumnName(j)] = nil
					}
					continue
				}
				if col.IsNull(i) {
					continue
				}
				blob, err := wkbValue(col, i)
				if err != nil {
					return nil, conversionErrorf(name, err, "row %d", row)
				}
				g, err := wkb.Unmarshal(blob)
				if err != nil {
					res.warnf("Row %d skipped: %v", row, err)
					f = nil
					break
				}
				f.Geometry = g
			}
			if f == nil {
				continue
			}
			if f.Geometry == nil {
				nulls++
			}
			res.add(f)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, conversionErrorf(name, err, "read records")
	}

	if nulls > 0 {
		res.warnf("%d features have null geometry", nulls)
	}
	return res, nil
}

func wkbValue(col arrow.Array, i int) ([]byte, error) {
	switch a := col.(type) {
	case *array.Binary:
		return a.Value(i), nil
	case *array.LargeBinary:
		return a.Value(i), nil
	}
	return nil, errors.Errorf("geometry column has type %s, expected binary WKB", col.DataType())
}

// projJSONName turns a PROJJSON CRS into "AUTHORITY:code" or its name.
// A missing CRS means OGC:CRS84.
func projJSONName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var crs struct {
		Name string `json:"name"`
		ID   *struct {
			Authority string `json:"authority"`
			Code      any    `json:"code"`
		} `json:"id"`
	}
	if err := json.Unmarshal(raw, &crs); err != nil {
		// a bare string
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	if crs.ID != nil {
		return fmt.Sprintf("%s:%v", crs.ID.Authority, crs.ID.Code)
	}
	return crs.Name
}

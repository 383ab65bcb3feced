//go:build gpkg

package convert

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/woozymasta/geoprep/internal/geo"
)

// GeoPackage reads feature tables of OGC GeoPackage files.
type GeoPackage struct{}

func newGeoPackage() Converter { return GeoPackage{} }

// Info implements Converter.
func (GeoPackage) Info() FormatInfo {
	return geoPackageInfo(true)
}

type gpkgLayer struct {
	table  string
	column string
	srsID  int64
}

// Convert implements Converter.
func (c GeoPackage) Convert(ctx context.Context, src Source, opts Options) (*Result, error) {
	name := c.Info().Name

	if _, ok := src.Value(); ok {
		return nil, conversionErrorf(name, nil, "GeoPackage can only be read from files or bytes")
	}
	path, cleanup, err := src.localFile(".gpkg")
	if err != nil {
		return nil, conversionErrorf(name, err, "stage source")
	}
	defer cleanup()

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, conversionErrorf(name, err, "open database")
	}
	defer func() { _ = db.Close() }()

	layers, err := gpkgLayers(ctx, db)
	if err != nil {
		return nil, conversionErrorf(name, err, "list layers")
	}
	if len(layers) == 0 {
		return nil, conversionErrorf(name, nil, "no feature layers found")
	}

	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.table
	}

	res := newResult(name)
	layer := layers[0]
	if opts.Layer != "" {
		found := false
		for _, l := range layers {
			if l.table == opts.Layer {
				layer, found = l, true
				break
			}
		}
		if !found {
			return nil, conversionErrorf(name, nil, "layer %q not found, available: %s", opts.Layer, strings.Join(names, ", "))
		}
	} else if len(layers) > 1 {
		res.warnf("GeoPackage has %d layers, using '%s'. Available: %s", len(layers), layer.table, strings.Join(names, ", "))
	}

	res.Metadata["layer"] = layer.table
	res.Metadata["available_layers"] = names
	res.Metadata["srs_id"] = layer.srsID

	crs, err := gpkgCRS(ctx, db, layer.srsID)
	if err != nil {
		return nil, conversionErrorf(name, err, "read spatial reference %d", layer.srsID)
	}
	res.checkCRS(crs)

	if err := gpkgFeatures(ctx, db, layer, res); err != nil {
		return nil, conversionErrorf(name, err, "read layer %s", layer.table)
	}

	return res, nil
}

func gpkgLayers(ctx context.Context, db *sql.DB) ([]gpkgLayer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var layers []gpkgLayer
	for rows.Next() {
		var l gpkgLayer
		if err := rows.Scan(&l.table, &l.column, &l.srsID); err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// gpkgCRS returns "ORGANIZATION:code" for a spatial reference system id.
// Ids 0 and -1 are the undefined geographic and cartesian systems.
func gpkgCRS(ctx context.Context, db *sql.DB, srsID int64) (string, error) {
	if srsID <= 0 {
		return "", nil
	}

	var (
		org  string
		code int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`,
		srsID,
	).Scan(&org, &code)
	if err == sql.ErrNoRows {
		return fmt.Sprintf("EPSG:%d", srsID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", strings.ToUpper(org), code), nil
}

func gpkgFeatures(ctx context.Context, db *sql.DB, layer gpkgLayer, res *Result) error {
	pk, err := gpkgPrimaryKey(ctx, db, layer.table)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(layer.table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	nulls := 0
	for row := 0; rows.Next(); row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		f := &geo.Feature{Properties: map[string]any{}}
		skip := false
		for i, col := range columns {
			v := values[i]
			switch {
			case col == layer.column:
				blob, _ := v.([]byte)
				g, err := decodeGeoPackageBinary(blob)
				if err != nil {
					res.warnf("Feature %d skipped: %v", row, err)
					skip = true
				}
				f.Geometry = g
			case col == pk:
				f.ID = v
			default:
				if b, ok := v.([]byte); ok {
					v = string(b)
				}
				f.Properties[col] = v
			}
		}
		if skip {
			continue
		}
		if f.Geometry == nil {
			nulls++
		}
		res.add(f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if nulls > 0 {
		res.warnf("%d features have null geometry", nulls)
	}
	return nil
}

func gpkgPrimaryKey(ctx context.Context, db *sql.DB, table string) (string, error) {
	var pk string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM pragma_table_info(?) WHERE pk = 1`, table,
	).Scan(&pk)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return pk, err
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// decodeGeoPackageBinary strips the GeoPackage binary header and decodes the
// WKB payload. Empty blobs and geometries flagged empty decode to nil.
func decodeGeoPackageBinary(blob []byte) (geom.T, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errors.New("invalid GeoPackage geometry header")
	}

	flags := blob[3]
	if flags&0x10 != 0 {
		return nil, nil
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, errors.Errorf("invalid envelope indicator in flags 0x%02x", flags)
	}

	start := 8 + envelope
	if start > len(blob) {
		return nil, errors.New("truncated GeoPackage geometry")
	}
	return wkb.Unmarshal(blob[start:])
}

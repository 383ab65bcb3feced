package convert

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/woozymasta/geoprep/internal/geo"
)

// GeoJSON reads GeoJSON documents and normalizes them into a FeatureCollection.
type GeoJSON struct{}

// Info implements Converter.
func (GeoJSON) Info() FormatInfo {
	return FormatInfo{
		Name:       "GeoJSON",
		Extensions: []string{".geojson", ".json"},
		MIMETypes:  []string{geo.MediaType, "application/json"},
		Available:  true,
	}
}

// Convert implements Converter.
func (c GeoJSON) Convert(ctx context.Context, src Source, _ Options) (*Result, error) {
	name := c.Info().Name

	data, err := geoJSONBytes(src)
	if err != nil {
		return nil, conversionErrorf(name, err, "read source")
	}

	typ, err := geo.PeekType(data)
	if err != nil {
		return nil, conversionErrorf(name, err, "invalid JSON")
	}

	res := newResult(name)

	switch typ {
	case "FeatureCollection":
		var doc struct {
			Features []json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, conversionErrorf(name, err, "decode features")
		}
		for i, raw := range doc.Features {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			f := &geo.Feature{}
			if err := f.UnmarshalJSON(raw); err != nil {
				res.warnf("Feature %d skipped: %v", i, err)
				continue
			}
			res.add(f)
		}

	case "Feature":
		f := &geo.Feature{}
		if err := f.UnmarshalJSON(data); err != nil {
			return nil, conversionErrorf(name, err, "decode feature")
		}
		res.add(f)
		res.warnf("Wrapped single Feature in FeatureCollection")

	case "GeometryCollection":
		var doc struct {
			Geometries []json.RawMessage `json:"geometries"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, conversionErrorf(name, err, "decode geometries")
		}
		for i, raw := range doc.Geometries {
			g, err := geo.DecodeGeometry(raw)
			if err != nil {
				res.warnf("Geometry %d skipped: %v", i, err)
				continue
			}
			res.add(&geo.Feature{Geometry: g, Properties: map[string]any{}})
		}
		res.warnf("Converted GeometryCollection to FeatureCollection")

	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon":
		g, err := geo.DecodeGeometry(data)
		if err != nil {
			return nil, conversionErrorf(name, err, "decode geometry")
		}
		res.add(&geo.Feature{Geometry: g, Properties: map[string]any{}})
		res.warnf("Wrapped %s geometry in FeatureCollection", typ)

	default:
		return nil, conversionErrorf(name, nil, "invalid GeoJSON type %q", typ)
	}

	nulls := 0
	for _, f := range res.Collection.Features {
		if f.Geometry == nil {
			nulls++
		}
	}
	if nulls > 0 {
		res.warnf("%d features have null geometry", nulls)
	}

	return res, nil
}

// geoJSONBytes returns the JSON text of src. Parsed values are re-encoded so
// the result never shares state with the caller's value.
func geoJSONBytes(src Source) ([]byte, error) {
	v, ok := src.Value()
	if !ok {
		return src.ReadAll()
	}
	if fc, ok := v.(*geo.FeatureCollection); ok {
		return fc.MarshalJSON()
	}
	return json.Marshal(v)
}

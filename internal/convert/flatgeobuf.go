package convert

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/woozymasta/geoprep/internal/flatgeobuf"
	"github.com/woozymasta/geoprep/internal/geo"
)

// FlatGeobuf reads FlatGeobuf files.
type FlatGeobuf struct{}

// Info implements Converter.
func (FlatGeobuf) Info() FormatInfo {
	return FormatInfo{
		Name:       "FlatGeobuf",
		Extensions: []string{".fgb"},
		MIMETypes:  []string{"application/flatgeobuf"},
		Available:  true,
	}
}

// Convert implements Converter.
func (c FlatGeobuf) Convert(ctx context.Context, src Source, _ Options) (*Result, error) {
	name := c.Info().Name

	if _, ok := src.Value(); ok {
		return nil, conversionErrorf(name, nil, "FlatGeobuf can only be read from files or bytes")
	}
	data, err := src.ReadAll()
	if err != nil {
		return nil, conversionErrorf(name, err, "read source")
	}

	r, err := flatgeobuf.NewReader(data)
	if err != nil {
		return nil, conversionErrorf(name, err, "open FlatGeobuf")
	}
	h := r.Header()

	res := newResult(name)
	res.checkCRS(h.CRS.String())
	res.Metadata["geometry_type"] = h.GeometryType.String()
	res.Metadata["header_features_count"] = h.FeaturesCount
	if h.Name != "" {
		res.Metadata["name"] = h.Name
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := r.Next()
		if err == io.EOF {
			break
		}
		var re *flatgeobuf.RecordError
		if errors.As(err, &re) {
			res.warnf("Feature %d skipped: %v", i, re.Err)
			continue
		}
		if err != nil {
			return nil, conversionErrorf(name, err, "feature %d", i)
		}
		if f.Geometry == nil {
			res.warnf("Feature %d has null geometry, skipped", i)
			continue
		}

		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		res.add(&geo.Feature{Geometry: f.Geometry, Properties: props})
	}

	return res, nil
}

package processor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/flatgeobuf"
	"github.com/woozymasta/geoprep/internal/geo"
)

// WriteOutput writes fc to path. Names ending with .fgb are written as
// FlatGeobuf, everything else as GeoJSON text produced by enc.
func WriteOutput(path string, fc *geo.FeatureCollection, enc geo.Encoder) error {
	if strings.EqualFold(filepath.Ext(path), ".fgb") {
		return writeFlatGeobuf(path, fc)
	}
	return enc.WriteFile(path, fc)
}

// writeFlatGeobuf encodes fc as FlatGeobuf. The header geometry type is set
// only when every feature shares it.
func writeFlatGeobuf(path string, fc *geo.FeatureCollection) error {
	if fc == nil {
		fc = geo.NewFeatureCollection()
	}
	features := make([]*flatgeobuf.Feature, 0, fc.Len())
	gt := flatgeobuf.Unknown
	for i, f := range fc.Features {
		t := flatgeobuf.TypeOf(f.Geometry)
		switch {
		case i == 0:
			gt = t
		case t != gt:
			gt = flatgeobuf.Unknown
		}
		features = append(features, &flatgeobuf.Feature{Geometry: f.Geometry, Properties: f.Properties})
	}

	h := flatgeobuf.Header{
		Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		GeometryType: gt,
		CRS:          &flatgeobuf.CRS{Code: 4326},
	}

	var buf bytes.Buffer
	if err := flatgeobuf.Write(&buf, h, features); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}

	log.Debug().Str("path", path).Int("features", len(features)).Msg("FlatGeobuf written")
	return nil
}

// Package geo handles the canonical feature model and its GeoJSON representation.
package geo

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is a single geographic feature. A nil Geometry is the null geometry.
// ID is nil, a string or a number.
type Feature struct {
	ID         any
	Geometry   geom.T
	Properties map[string]any
}

// FeatureCollection is an ordered sequence of features.
type FeatureCollection struct {
	Features []*Feature
}

// Len returns the number of features in the collection.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Add appends features to the collection.
func (fc *FeatureCollection) Add(features ...*Feature) {
	fc.Features = append(fc.Features, features...)
}

// NewFeatureCollection returns a collection holding the given features.
func NewFeatureCollection(features ...*Feature) *FeatureCollection {
	if features == nil {
		features = []*Feature{}
	}
	return &FeatureCollection{Features: features}
}

// Wire structures
type featureJSON struct {
	Type       string            `json:"type"`
	ID         any               `json:"id,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties map[string]any    `json:"properties"`
}

type collectionJSON struct {
	Type     string          `json:"type"`
	Features json.RawMessage `json:"features"`
}

// MarshalJSON implements json.Marshaler.
func (f *Feature) MarshalJSON() ([]byte, error) {
	g, err := EncodeGeometry(f.Geometry)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&featureJSON{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   g,
		Properties: f.Properties,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw featureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "Feature" {
		return errors.Errorf("geo: expected Feature, got %q", raw.Type)
	}

	g, err := raw.Geometry.Decode()
	if err != nil {
		return errors.Wrap(err, "geo: decode feature geometry")
	}

	f.ID = raw.ID
	f.Geometry = g
	f.Properties = raw.Properties
	return nil
}

// MarshalJSON writes the collection as a GeoJSON FeatureCollection.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"FeatureCollection","features":[`)

	for i, f := range fc.Features {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := f.MarshalJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "geo: feature %d", i)
		}
		buf.Write(b)
	}

	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a GeoJSON FeatureCollection.
func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var raw collectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "FeatureCollection" {
		return errors.Errorf("geo: expected FeatureCollection, got %q", raw.Type)
	}

	features := []*Feature{}
	if len(raw.Features) > 0 && !bytes.Equal(raw.Features, []byte("null")) {
		if err := json.Unmarshal(raw.Features, &features); err != nil {
			return err
		}
	}

	fc.Features = features
	return nil
}

// EncodeGeometry converts a geometry into its GeoJSON wire form.
// A nil geometry encodes to nil, which marshals as JSON null.
func EncodeGeometry(g geom.T) (*geojson.Geometry, error) {
	if g == nil {
		return nil, nil
	}

	out, err := geojson.Encode(g)
	if err != nil {
		return nil, errors.Wrap(err, "geo: encode geometry")
	}
	return out, nil
}

// DecodeGeometry parses a single GeoJSON geometry object.
// JSON null decodes to a nil geometry.
func DecodeGeometry(data []byte) (geom.T, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	var g geojson.Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "geo: parse geometry")
	}

	out, err := g.Decode()
	if err != nil {
		return nil, errors.Wrapf(err, "geo: decode %s", g.Type)
	}
	return out, nil
}

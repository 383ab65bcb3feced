package geo

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/tdewolff/minify/v2"
	minjson "github.com/tdewolff/minify/v2/json"
)

// MediaType is the registered media type of GeoJSON documents.
const MediaType = "application/geo+json"

// Encoder writes feature collections as GeoJSON text.
type Encoder struct {
	// Indent pretty-prints output with the given indent string. Ignored when Minify is set.
	Indent string
	// Minify strips insignificant whitespace and shortens numbers.
	Minify bool
	// Precision limits the significant digits of numbers when minifying. Zero keeps them all.
	Precision int
}

// Encode returns the GeoJSON text of fc.
func (e Encoder) Encode(fc *FeatureCollection) ([]byte, error) {
	if fc == nil {
		fc = NewFeatureCollection()
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, err
	}

	switch {
	case e.Minify:
		m := minify.New()
		m.Add(MediaType, &minjson.Minifier{Precision: e.Precision})
		out, err := m.Bytes(MediaType, data)
		if err != nil {
			return nil, errors.Wrap(err, "geo: minify")
		}
		return out, nil

	case e.Indent != "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", e.Indent); err != nil {
			return nil, errors.Wrap(err, "geo: indent")
		}
		return buf.Bytes(), nil
	}

	return data, nil
}

// Write encodes fc into w.
func (e Encoder) Write(w io.Writer, fc *FeatureCollection) error {
	data, err := e.Encode(fc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes fc into path, creating parent directories as needed.
func (e Encoder) WriteFile(path string, fc *FeatureCollection) error {
	data, err := e.Encode(fc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var zipMagic = []byte("PK\x03\x04")

// Source is the input of a conversion: a file path, raw bytes or an
// already parsed value.
type Source struct {
	path  string
	name  string
	data  []byte
	value any
}

// FromPath reads the source from a file.
func FromPath(path string) Source {
	return Source{path: path, name: path}
}

// FromBytes reads the source from memory. The name may carry an extension
// hint used for format lookup.
func FromBytes(data []byte, name string) Source {
	return Source{data: data, name: name}
}

// FromValue wraps an already parsed value: a JSON mapping, a
// *topojson.Topology or a *geo.FeatureCollection.
func FromValue(v any) Source {
	return Source{value: v}
}

// Name returns the path or the name hint.
func (s Source) Name() string {
	return s.name
}

// Ext returns the lower-case extension of the name, with its dot.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.name))
}

// Value returns the parsed value of a FromValue source.
func (s Source) Value() (any, bool) {
	return s.value, s.value != nil
}

// ReadAll returns the whole source content.
func (s Source) ReadAll() ([]byte, error) {
	switch {
	case s.data != nil:
		return s.data, nil
	case s.path != "":
		return os.ReadFile(s.path)
	case s.value != nil:
		return nil, errors.New("source is a parsed value, not raw data")
	}
	return nil, errors.New("empty source")
}

// isZip reports whether the source is a ZIP archive, by extension or signature.
func (s Source) isZip(exts ...string) bool {
	ext := s.Ext()
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	if s.data != nil {
		return bytes.HasPrefix(s.data, zipMagic)
	}
	return false
}

// localFile returns a file system path holding the source, for readers that
// only open files. In-memory sources are written to a temporary directory
// that cleanup removes.
func (s Source) localFile(ext string) (path string, cleanup func(), err error) {
	if s.path != "" {
		return s.path, func() {}, nil
	}

	data, err := s.ReadAll()
	if err != nil {
		return "", nil, err
	}

	dir, err := os.MkdirTemp("", "geoprep-*")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	path = filepath.Join(dir, "source"+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

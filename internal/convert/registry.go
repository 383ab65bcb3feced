package convert

import (
	"context"
	"strings"
	"sync"
)

// Registry maps format names and file extensions to converters.
// It is read-only once built and safe for concurrent use.
type Registry struct {
	converters []Converter
	byName     map[string]Converter
	byExt      map[string]Converter
}

// NewRegistry builds a registry. On conflicting names or extensions the
// first registered converter wins.
func NewRegistry(converters ...Converter) *Registry {
	r := &Registry{
		byName: make(map[string]Converter, len(converters)),
		byExt:  make(map[string]Converter),
	}

	for _, c := range converters {
		info := c.Info()
		name := strings.ToLower(info.Name)
		if _, ok := r.byName[name]; ok {
			continue
		}
		r.converters = append(r.converters, c)
		r.byName[name] = c

		for _, ext := range info.Extensions {
			ext = normalizeExt(ext)
			if _, ok := r.byExt[ext]; !ok {
				r.byExt[ext] = c
			}
		}
	}

	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process wide registry with every built-in converter.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(
			GeoJSON{},
			TopoJSON{},
			Shapefile{},
			newGeoPackage(),
			KML{},
			FlatGeobuf{},
			newGeoParquet(),
			GPX{},
		)
	})
	return defaultRegistry
}

// Lookup resolves the converter for a source. An explicit format, matched
// against canonical names and extension aliases, wins over the extension of
// path. Unavailable converters are reported as *UnavailableFormatError.
func (r *Registry) Lookup(path, format string) (Converter, error) {
	var (
		c     Converter
		input string
	)

	if format != "" {
		input = format
		key := strings.ToLower(strings.TrimSpace(format))
		c = r.byName[key]
		if c == nil {
			c = r.byExt[normalizeExt(key)]
		}
	} else {
		input = path
		if ext := extOf(path); ext != "" {
			c = r.byExt[ext]
		}
	}

	if c == nil {
		return nil, &UnknownFormatError{Input: input}
	}

	if info := c.Info(); !info.Available {
		return nil, &UnavailableFormatError{Format: info.Name, Dependency: info.Requires}
	}

	return c, nil
}

// Formats lists every registered format, available or not.
func (r *Registry) Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(r.converters))
	for _, c := range r.converters {
		out = append(out, c.Info())
	}
	return out
}

// Convert converts the file at path.
func (r *Registry) Convert(ctx context.Context, path, format string, opts Options) (*Result, error) {
	return r.ConvertSource(ctx, FromPath(path), format, opts)
}

// ConvertSource converts src, using its name for extension lookup.
func (r *Registry) ConvertSource(ctx context.Context, src Source, format string, opts Options) (*Result, error) {
	c, err := r.Lookup(src.Name(), format)
	if err != nil {
		return nil, err
	}
	return c.Convert(ctx, src, opts)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// extOf returns the normalized extension of path, handling names with no dot.
func extOf(path string) string {
	i := strings.LastIndexAny(path, "./\\")
	if i < 0 || path[i] != '.' {
		return ""
	}
	return strings.ToLower(path[i:])
}

// Package config handles configuration loading and shared data structures.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/woozymasta/geoprep/internal/validate"
)

// Defaults applied to omitted keys.
const (
	DefaultOutputDir   = "out"
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
	DefaultLayer       = "data"
	DefaultMinZoom     = 0
	DefaultMaxZoom     = 10
)

// Config represents the root configuration file structure.
type Config struct {
	OutputDir   string        `yaml:"output_dir" json:"output_dir"`
	Username    string        `yaml:"username,omitempty" json:"username,omitempty"`
	Attribution string        `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Minify      bool          `yaml:"minify,omitempty" json:"minify,omitempty"`
	Precision   int           `yaml:"precision,omitempty" json:"precision,omitempty"`
	Validation  Validation    `yaml:"validation" json:"validation"`
	Sources     []Source      `yaml:"sources" json:"sources"`
}

// Source is a single input to convert.
// Exactly one of URL, Path and Inline must be set.
type Source struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// defining GeoJSON directly in config.yaml
	Inline map[string]any `yaml:"geojson,omitempty" json:"-"`

	Format   string   `yaml:"format,omitempty" json:"format,omitempty"`
	Object   string   `yaml:"object,omitempty" json:"object,omitempty"`
	Layer    string   `yaml:"layer,omitempty" json:"layer,omitempty"`
	Encoding string   `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Output   string   `yaml:"output,omitempty" json:"output,omitempty"` // file name inside output_dir
	Tileset  *Tileset `yaml:"tileset,omitempty" json:"tileset,omitempty"`
}

// Location returns the URL or the path of the source, empty for inline data.
func (s Source) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// OutputName returns the name of the GeoJSON file written for the source.
func (s Source) OutputName() string {
	if s.Output != "" {
		return s.Output
	}
	return s.Name + ".geojson"
}

// Tileset holds the settings of the tileset built from a source.
type Tileset struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	SourceID    string         `yaml:"source_id,omitempty" json:"source_id,omitempty"`
	Layer       string         `yaml:"layer,omitempty" json:"layer,omitempty"`
	MinZoom     int            `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom     int            `yaml:"max_zoom" json:"max_zoom"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Attribution string         `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Recipe      map[string]any `yaml:"recipe,omitempty" json:"recipe,omitempty"`
}

// UnmarshalYAML decodes a tileset block, keeping defaults for omitted keys.
func (t *Tileset) UnmarshalYAML(node *yaml.Node) error {
	type plain Tileset
	p := plain{MinZoom: DefaultMinZoom, MaxZoom: DefaultMaxZoom}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Tileset(p).WithDefaults()
	return nil
}

// WithDefaults returns a copy with the derived source ID and layer filled in.
func (t Tileset) WithDefaults() Tileset {
	if t.SourceID == "" {
		t.SourceID = strings.ReplaceAll(t.ID, ".", "-")
	}
	if t.Layer == "" {
		t.Layer = DefaultLayer
	}
	return t
}

// Validation maps the validator options. Omitted keys keep the defaults.
type Validation struct {
	Enabled       *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Coordinates   *bool `yaml:"coordinates,omitempty" json:"coordinates,omitempty"`
	Winding       *bool `yaml:"winding,omitempty" json:"winding,omitempty"`
	Duplicates    *bool `yaml:"duplicates,omitempty" json:"duplicates,omitempty"`
	Closure       *bool `yaml:"closure,omitempty" json:"closure,omitempty"`
	Intersections *bool `yaml:"intersections,omitempty" json:"intersections,omitempty"`
	MaxWarnings   *int  `yaml:"max_warnings,omitempty" json:"max_warnings,omitempty"`
}

// IsEnabled reports whether sources are validated after conversion.
func (v Validation) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// Options returns the validator options with defaults for unset keys.
func (v Validation) Options() validate.Options {
	opts := validate.DefaultOptions()
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&opts.CheckCoordinates, v.Coordinates)
	set(&opts.CheckWinding, v.Winding)
	set(&opts.CheckDuplicates, v.Duplicates)
	set(&opts.CheckClosure, v.Closure)
	set(&opts.CheckIntersections, v.Intersections)
	if v.MaxWarnings != nil {
		opts.MaxWarnings = *v.MaxWarnings
	}
	return opts
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML document, applies defaults and checks the sources.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	for i := range c.Sources {
		ts := c.Sources[i].Tileset
		if ts == nil {
			continue
		}
		*ts = ts.WithDefaults()
		if ts.Attribution == "" {
			ts.Attribution = c.Attribution
		}
	}
}

// Validate checks that every source is named, unique and has exactly one input.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return errors.Errorf("source #%d: name is required", i)
		}
		if seen[s.Name] {
			return errors.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		inputs := 0
		for _, set := range []bool{s.URL != "", s.Path != "", s.Inline != nil} {
			if set {
				inputs++
			}
		}
		if inputs != 1 {
			return errors.Errorf("source %q: exactly one of url, path or geojson is required", s.Name)
		}

		if ts := s.Tileset; ts != nil {
			if ts.ID == "" {
				return errors.Errorf("source %q: tileset id is required", s.Name)
			}
			if ts.MinZoom < 0 || ts.MaxZoom < ts.MinZoom {
				return errors.Errorf("source %q: invalid zoom range %d-%d", s.Name, ts.MinZoom, ts.MaxZoom)
			}
		}
	}
	return nil
}

// Source returns the source with the given name.
func (c *Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Select returns the named sources in the given order, ignoring repeats,
// together with the names that are not configured. No names selects all.
func (c *Config) Select(names []string) ([]Source, []string) {
	if len(names) == 0 {
		return c.Sources, nil
	}

	var (
		selected []Source
		missing  []string
	)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		if s, ok := c.Source(name); ok {
			selected = append(selected, s)
		} else {
			missing = append(missing, name)
		}
	}
	return selected, missing
}

// Package convert turns geographic sources of many formats into feature
// collections through a single converter interface and a format registry.
package convert

import (
	"context"
	"fmt"

	"github.com/woozymasta/geoprep/internal/geo"
)

// FormatInfo describes a registered format.
type FormatInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Extensions []string `json:"extensions" yaml:"extensions"`
	MIMETypes  []string `json:"mime_types" yaml:"mime_types"`
	Requires   string   `json:"requires,omitempty" yaml:"requires,omitempty"`
	Available  bool     `json:"available" yaml:"available"`
}

// Options holds the format specific conversion settings.
// The zero value converts everything with default settings.
type Options struct {
	// Object selects a single TopoJSON object.
	Object string
	// Layer selects a GeoPackage table or a KML Document/Folder.
	Layer string
	// Encoding overrides the shapefile DBF character set.
	Encoding string

	// GPX selectors.
	SkipWaypoints bool
	SkipRoutes    bool
	SkipTracks    bool
}

// Result is the outcome of a successful conversion.
// FeatureCount always equals the number of features in Collection.
type Result struct {
	Collection   *geo.FeatureCollection `json:"collection" yaml:"-"`
	SourceFormat string                 `json:"source_format" yaml:"source_format"`
	FeatureCount int                    `json:"feature_count" yaml:"feature_count"`
	Warnings     []string               `json:"warnings" yaml:"warnings"`
	Metadata     map[string]any         `json:"metadata" yaml:"metadata"`
}

// Converter reads one source format.
type Converter interface {
	Info() FormatInfo
	Convert(ctx context.Context, src Source, opts Options) (*Result, error)
}

func newResult(format string) *Result {
	return &Result{
		Collection:   geo.NewFeatureCollection(),
		SourceFormat: format,
		Warnings:     []string{},
		Metadata:     map[string]any{},
	}
}

func (r *Result) add(f *geo.Feature) {
	r.Collection.Add(f)
	r.FeatureCount = r.Collection.Len()
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// unavailable stands in for a converter compiled out of this build.
type unavailable struct {
	info FormatInfo
}

func (u unavailable) Info() FormatInfo { return u.info }

func (u unavailable) Convert(context.Context, Source, Options) (*Result, error) {
	return nil, &UnavailableFormatError{Format: u.info.Name, Dependency: u.info.Requires}
}

// Package processor runs the batch pipeline: fetch, convert, validate and
// write every configured source, and builds tileset recipes for them.
package processor

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/config"
	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/geo"
	"github.com/woozymasta/geoprep/internal/validate"
)

// Processor converts configured sources into GeoJSON files.
type Processor struct {
	Config   *config.Config
	Client   *http.Client
	Registry *convert.Registry
	// Force overwrites existing output files.
	Force bool
}

// New returns a processor using the default registry.
func New(cfg *config.Config, client *http.Client) *Processor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Processor{
		Config:   cfg,
		Client:   client,
		Registry: convert.Default(),
	}
}

// Report is the outcome of processing one source.
type Report struct {
	Source       string           `json:"source" yaml:"source"`
	Location     string           `json:"location,omitempty" yaml:"location,omitempty"`
	Output       string           `json:"output" yaml:"output"`
	Format       string           `json:"format,omitempty" yaml:"format,omitempty"`
	FeatureCount int              `json:"feature_count" yaml:"feature_count"`
	Warnings     []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Validation   *validate.Result `json:"validation,omitempty" yaml:"validation,omitempty"`
	Skipped      bool             `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error        string           `json:"error,omitempty" yaml:"error,omitempty"`
	Duration     time.Duration    `json:"duration" yaml:"duration"`
}

// ConvertOptions maps the per-source settings to converter options.
func ConvertOptions(src config.Source) convert.Options {
	return convert.Options{
		Object:   src.Object,
		Layer:    src.Layer,
		Encoding: src.Encoding,
	}
}

// Run processes sources concurrently, bounded by the configured concurrency.
// Reports are returned in source order. The error counts failed sources.
func (p *Processor) Run(ctx context.Context, sources []config.Source) ([]Report, error) {
	reports := make([]Report, len(sources))

	limit := p.Config.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}

	var wg sync.WaitGroup
	// Simple semaphore to limit concurrent conversions
	sem := make(chan struct{}, limit)

	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, src config.Source) {
			defer wg.Done()
			defer func() { <-sem }()

			rep, err := p.Process(ctx, src)
			if err != nil {
				rep.Error = err.Error()
				log.Error().Err(err).Str("source", src.Name).Msg("Failed to process source")
			}
			reports[i] = rep
		}(i, src)
	}
	wg.Wait()

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return reports, errors.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return reports, nil
}

// Process converts a single source and writes its output file.
func (p *Processor) Process(ctx context.Context, src config.Source) (Report, error) {
	start := time.Now()
	rep := Report{
		Source:   src.Name,
		Location: src.Location(),
		Output:   filepath.Join(p.Config.OutputDir, src.OutputName()),
	}

	if _, err := os.Stat(rep.Output); err == nil && !p.Force {
		log.Debug().Str("source", src.Name).Str("path", rep.Output).Msg("Output exists, skipping")
		rep.Skipped = true
		return rep, nil
	}

	if p.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Config.Timeout)
		defer cancel()
	}

	log.Info().
		Str("source", src.Name).
		Str("location", rep.Location).
		Msg("Processing source")

	res, err := p.Convert(ctx, src, ConvertOptions(src))
	if err != nil {
		return rep, err
	}
	rep.Format = res.SourceFormat
	rep.FeatureCount = res.FeatureCount
	rep.Warnings = append(rep.Warnings, res.Warnings...)

	if p.Config.Validation.IsEnabled() {
		rep.Validation = validate.Validate(res.Collection, p.Config.Validation.Options())
		for _, w := range rep.Validation.Warnings {
			if w.Severity != validate.SeverityInfo {
				rep.Warnings = append(rep.Warnings, "["+string(w.Code)+"] "+w.Message)
			}
		}
	}

	enc := geo.Encoder{Minify: p.Config.Minify, Precision: p.Config.Precision}
	if err := WriteOutput(rep.Output, res.Collection, enc); err != nil {
		return rep, errors.Wrapf(err, "source %s", src.Name)
	}
	rep.Duration = time.Since(start)

	ev := log.Info()
	if rep.Validation != nil && !rep.Validation.Valid {
		ev = log.Warn()
	}
	ev.Str("source", src.Name).
		Str("format", rep.Format).
		Int("features", rep.FeatureCount).
		Int("warnings", len(rep.Warnings)).
		Dur("duration", rep.Duration).
		Msg("Source converted")

	return rep, nil
}

// Convert fetches and converts src with opts without writing anything.
// Paths that are HTTP(S) URLs are downloaded like URL sources.
func (p *Processor) Convert(ctx context.Context, src config.Source, opts convert.Options) (*convert.Result, error) {
	reg := p.Registry
	if reg == nil {
		reg = convert.Default()
	}

	switch {
	case src.Inline != nil:
		format := src.Format
		if format == "" {
			format = "geojson"
		}
		return reg.ConvertSource(ctx, convert.FromValue(src.Inline), format, opts)

	case src.URL != "" || isRemote(src.Path):
		client := p.Client
		if client == nil {
			client = http.DefaultClient
		}
		data, name, err := fetch(ctx, client, src.Location())
		if err != nil {
			return nil, err
		}
		return reg.ConvertSource(ctx, convert.FromBytes(data, name), src.Format, opts)
	}

	return reg.Convert(ctx, src.Path, src.Format, opts)
}

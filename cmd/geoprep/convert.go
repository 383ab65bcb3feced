package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/config"
	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/geo"
	"github.com/woozymasta/geoprep/internal/processor"
	"github.com/woozymasta/geoprep/internal/validate"
)

// InputOptions selects and reads the input of a command.
type InputOptions struct {
	Input    string        `short:"i" long:"in"       description:"Input file path or URL" required:"true"`
	From     string        `short:"F" long:"from"     description:"Input format, detected from the extension if empty"`
	Object   string        `long:"object"             description:"TopoJSON object to convert"`
	Layer    string        `long:"layer"              description:"GeoPackage table or KML folder to convert"`
	Encoding string        `long:"encoding"           description:"Shapefile DBF character set"`
	Timeout  time.Duration `long:"timeout"            description:"Download and conversion timeout" default:"5m"`

	SkipWaypoints bool `long:"skip-waypoints" description:"Skip GPX waypoints"`
	SkipRoutes    bool `long:"skip-routes"    description:"Skip GPX routes"`
	SkipTracks    bool `long:"skip-tracks"    description:"Skip GPX tracks"`
}

// load converts the input, logging every conversion warning.
func (o InputOptions) load(ctx context.Context) (*convert.Result, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	p := processor.New(&config.Config{Timeout: o.Timeout}, nil)
	res, err := p.Convert(ctx, config.Source{Name: "input", Path: o.Input, Format: o.From}, convert.Options{
		Object:        o.Object,
		Layer:         o.Layer,
		Encoding:      o.Encoding,
		SkipWaypoints: o.SkipWaypoints,
		SkipRoutes:    o.SkipRoutes,
		SkipTracks:    o.SkipTracks,
	})
	if err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		log.Warn().Str("input", o.Input).Msg(w)
	}
	log.Info().
		Str("input", o.Input).
		Str("format", res.SourceFormat).
		Int("features", res.FeatureCount).
		Msg("Input converted")

	return res, nil
}

// ConvertCommand converts one input to GeoJSON or FlatGeobuf.
type ConvertCommand struct {
	InputOptions `group:"Input options"`

	Output    string `short:"o" long:"out"       description:"Output file path, FlatGeobuf when it ends with .fgb. Writes to stdout if empty"`
	Validate  bool   `long:"validate"            description:"Validate geometries and log the summary"`
	Minify    bool   `short:"m" long:"minify"    description:"Minify GeoJSON output"`
	Precision int    `long:"precision"           description:"Significant digits of minified numbers, 0 keeps all"`
	Indent    string `long:"indent"              description:"Indent string of pretty-printed output"`

	out io.Writer
}

// Execute implements flags.Commander.
func (c *ConvertCommand) Execute([]string) error {
	res, err := c.load(context.Background())
	if err != nil {
		return err
	}

	if c.Validate {
		v := validate.Validate(res.Collection, validate.DefaultOptions())
		ev := log.Info()
		if !v.Valid {
			ev = log.Warn()
		}
		ev.Bool("valid", v.Valid).
			Int("errors", v.ErrorCount()).
			Int("warnings", v.WarningCount()).
			Int("valid_features", v.ValidFeatureCount).
			Msg("Geometry validated")
	}

	enc := geo.Encoder{Indent: c.Indent, Minify: c.Minify, Precision: c.Precision}
	if c.Output == "" {
		return enc.Write(output(c.out), res.Collection)
	}

	if err := processor.WriteOutput(c.Output, res.Collection, enc); err != nil {
		return err
	}
	log.Info().Str("path", c.Output).Int("features", res.FeatureCount).Msg("Output written")
	return nil
}

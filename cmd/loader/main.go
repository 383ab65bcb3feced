package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/geoprep/internal/config"
	"github.com/woozymasta/geoprep/internal/logger"
	"github.com/woozymasta/geoprep/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string        `short:"c" long:"config"      env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Limit       []string      `short:"l" long:"limit"       env:"LIMIT_NAMES"  description:"Limit processing to specific source names"`
	Concurrency int           `short:"p" long:"concurrency" env:"CONCURRENCY"  description:"Concurrency, overrides the configured value"`
	OutputDir   string        `short:"o" long:"output-dir"  env:"OUTPUT_DIR"   description:"Output directory, overrides the configured value"`
	Timeout     time.Duration `short:"t" long:"timeout"     env:"TIMEOUT"      description:"Per source timeout, overrides the configured value"`
	Force       bool          `short:"f" long:"force"       description:"Force overwrite of existing files"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}

	sources, missing := cfg.Select(opts.Limit)
	for _, name := range missing {
		log.Error().
			Str("name", name).
			Msg("Source specified in --limit not found in configuration")
	}

	log.Info().
		Int("sources_total", len(cfg.Sources)).
		Int("sources_queued", len(sources)).
		Int("concurrency", cfg.Concurrency).
		Str("output_dir", cfg.OutputDir).
		Msg("Starting loader")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := processor.New(cfg, client)
	p.Force = opts.Force

	reports, err := p.Run(ctx, sources)

	converted, skipped, features := 0, 0, 0
	for _, r := range reports {
		switch {
		case r.Skipped:
			skipped++
		case r.Error == "":
			converted++
			features += r.FeatureCount
		}
	}

	if err != nil {
		log.Fatal().
			Err(err).
			Int("converted", converted).
			Int("skipped", skipped).
			Msg("Loader finished with errors")
	}

	log.Info().
		Int("converted", converted).
		Int("skipped", skipped).
		Int("features", features).
		Msg("Loader finished successfully")
}

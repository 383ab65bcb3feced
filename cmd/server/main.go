package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/woozymasta/geoprep/internal/config"
	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/logger"
	"github.com/woozymasta/geoprep/internal/server"
	"github.com/woozymasta/geoprep/internal/validate"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"        env:"CONFIG_FILE"    description:"Optional configuration file with validation and output settings"`
	Addr        string `short:"a" long:"addr"          env:"LISTEN_ADDRESS" description:"Address to listen on"          default:"0.0.0.0"`
	Port        int    `short:"p" long:"port"          env:"LISTEN_PORT"    description:"Port to listen on"             default:"8080"`
	MaxBodySize int64  `short:"b" long:"max-body-size" env:"MAX_BODY_SIZE"  description:"Maximum request body in bytes" default:"268435456"`
	Minify      bool   `short:"m" long:"minify"        env:"MINIFY"         description:"Minify GeoJSON responses"`
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

	// Setup Logging
	opts.Logger.Setup()

	validation := validate.DefaultOptions()
	minify, precision := opts.Minify, 0

	// Config is optional for the server
	if opts.ConfigFile != "" {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		validation = cfg.Validation.Options()
		minify = minify || cfg.Minify
		precision = cfg.Precision
	}

	srvCtx := server.NewServerContext(convert.Default(), validation)
	srvCtx.MaxBodySize = opts.MaxBodySize
	srvCtx.Encoder.Minify = minify
	srvCtx.Encoder.Precision = precision

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	log.Info().
		Str("addr", listenAddr).
		Int("formats", len(srvCtx.Registry.Formats())).
		Int64("max_body_size", srvCtx.MaxBodySize).
		Bool("minify", minify).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, srvCtx.Routes()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

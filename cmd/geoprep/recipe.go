package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/config"
	"github.com/woozymasta/geoprep/internal/processor"
)

// RecipeCommand prints the tileset plans of configured sources.
type RecipeCommand struct {
	ConfigFile string   `short:"c" long:"config"   env:"CONFIG_FILE"     description:"Path to configuration file" default:"config.yaml"`
	Username   string   `short:"u" long:"username" env:"MAPBOX_USERNAME" description:"Tileset owner, overrides the configured username"`
	Sources    []string `short:"s" long:"source"   description:"Limit to the named sources"`
	Format     string   `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" choice:"text" default:"json"`

	out io.Writer
}

// Execute implements flags.Commander.
func (c *RecipeCommand) Execute([]string) error {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return err
	}

	sources, missing := cfg.Select(c.Sources)
	for _, name := range missing {
		log.Error().Str("name", name).Msg("Source not found in configuration")
	}

	plans, err := processor.Plan(cfg, c.Username, sources)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		log.Warn().Str("config", c.ConfigFile).Msg("No selected source defines a tileset")
	}

	return render(output(c.out), c.Format, plans, func(w io.Writer) error {
		for _, p := range plans {
			fmt.Fprintf(w, "%s -> %s (source %s)\n", p.Source, p.TilesetID, p.SourceID)
			for i, s := range p.Steps {
				fmt.Fprintf(w, "  %d. %s: %s\n", i+1, s.Action, s.Description)
			}
		}
		return nil
	})
}

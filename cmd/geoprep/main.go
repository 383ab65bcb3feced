package main

import (
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/woozymasta/geoprep/internal/logger"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Convert, validate and prepare geographic data for tilesets"

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		opts.Logger.Setup()
		if cmd == nil {
			return nil
		}
		if err := cmd.Execute(args); err != nil {
			log.Fatal().Err(err).Msg("Command failed")
		}
		return nil
	}

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"formats", "List supported formats", "List every known input format and whether this build can read it.", &FormatsCommand{}},
		{"convert", "Convert a file to GeoJSON", "Convert a file or URL of any supported format to GeoJSON or FlatGeobuf.", &ConvertCommand{}},
		{"validate", "Validate geometries of a file", "Convert a file and report geometry problems. Exits with an error when the data is invalid.", &ValidateCommand{}},
		{"recipe", "Print tileset recipes", "Print the tileset recipe and the dry-run plan of configured sources.", &RecipeCommand{}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			log.Fatal().Err(err).Str("command", c.name).Msg("Failed to register command")
		}
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// output defaults the command writer to stdout.
func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// render writes v as indented JSON or YAML, or calls text for plain output.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return text(w)
}

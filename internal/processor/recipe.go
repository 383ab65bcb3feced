package processor

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/woozymasta/geoprep/internal/config"
)

// BuildRecipe returns the tileset recipe of ts. A recipe override set in the
// configuration is returned unchanged.
func BuildRecipe(ts config.Tileset, username string) map[string]any {
	if len(ts.Recipe) > 0 {
		return ts.Recipe
	}
	ts = ts.WithDefaults()

	return map[string]any{
		"version": 1,
		"layers": map[string]any{
			ts.Layer: map[string]any{
				"source":  fmt.Sprintf("mapbox://tileset-source/%s/%s", username, ts.SourceID),
				"minzoom": ts.MinZoom,
				"maxzoom": ts.MaxZoom,
			},
		},
	}
}

// Step is one action of a dry-run plan.
type Step struct {
	Action      string `json:"action" yaml:"action"`
	Description string `json:"description" yaml:"description"`
}

// TilesetPlan lists what publishing one source as a tileset would take.
// Nothing in it is ever executed.
type TilesetPlan struct {
	Source    string         `json:"source" yaml:"source"`
	TilesetID string         `json:"tileset_id" yaml:"tileset_id"`
	SourceID  string         `json:"source_id" yaml:"source_id"`
	Name      string         `json:"name" yaml:"name"`
	Recipe    map[string]any `json:"recipe" yaml:"recipe"`
	Steps     []Step         `json:"steps" yaml:"steps"`
}

// Plan builds the dry-run plan of every source that has a tileset block.
func Plan(cfg *config.Config, username string, sources []config.Source) ([]TilesetPlan, error) {
	if username == "" {
		username = cfg.Username
	}
	if username == "" {
		return nil, errors.New("username is required to build tileset recipes")
	}

	plans := make([]TilesetPlan, 0, len(sources))
	for _, src := range sources {
		if src.Tileset == nil {
			continue
		}
		ts := src.Tileset.WithDefaults()
		output := filepath.Join(cfg.OutputDir, src.OutputName())
		tilesetID := username + "." + ts.ID

		steps := []Step{{
			Action:      "convert",
			Description: fmt.Sprintf("convert %s to %s", describeInput(src), output),
		}}
		if cfg.Validation.IsEnabled() {
			steps = append(steps, Step{Action: "validate", Description: "validate geometries of " + output})
		}
		steps = append(steps,
			Step{Action: "upload_source", Description: fmt.Sprintf("upload %s as tileset source %s/%s", output, username, ts.SourceID)},
			Step{Action: "create_or_update_tileset", Description: fmt.Sprintf("create tileset %s or update its recipe", tilesetID)},
			Step{Action: "publish", Description: "publish tileset " + tilesetID},
			Step{Action: "wait", Description: "wait for the publish job of " + tilesetID},
		)

		plans = append(plans, TilesetPlan{
			Source:    src.Name,
			TilesetID: tilesetID,
			SourceID:  ts.SourceID,
			Name:      ts.Name,
			Recipe:    BuildRecipe(ts, username),
			Steps:     steps,
		})
	}
	return plans, nil
}

func describeInput(src config.Source) string {
	if src.Inline != nil {
		return "inline GeoJSON"
	}
	return src.Location()
}

package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/geoprep/internal/config"
)

func TestBuildRecipeDefaults(t *testing.T) {
	recipe := BuildRecipe(config.Tileset{ID: "world.countries", MaxZoom: 10}, "acme")
	assert.Equal(t, map[string]any{
		"version": 1,
		"layers": map[string]any{
			"data": map[string]any{
				"source":  "mapbox://tileset-source/acme/world-countries",
				"minzoom": 0,
				"maxzoom": 10,
			},
		},
	}, recipe)
}

func TestBuildRecipeOverride(t *testing.T) {
	override := map[string]any{"version": 1, "layers": map[string]any{}}
	assert.Equal(t, override, BuildRecipe(config.Tileset{ID: "x", Recipe: override}, "acme"))
}

func TestPlan(t *testing.T) {
	cfg, err := config.Parse([]byte(`
output_dir: out
username: acme
sources:
  - name: roads
    url: https://example.com/roads.shp
    tileset:
      id: roads.v2
      name: Roads
      layer: roads
      min_zoom: 4
      max_zoom: 14
  - name: scratch
    path: scratch.geojson
`))
	require.NoError(t, err)

	plans, err := Plan(cfg, "", cfg.Sources)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.Equal(t, "roads", p.Source)
	assert.Equal(t, "acme.roads.v2", p.TilesetID)
	assert.Equal(t, "roads-v2", p.SourceID)
	assert.Equal(t, "Roads", p.Name)

	actions := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		actions = append(actions, s.Action)
	}
	assert.Equal(t, []string{"convert", "validate", "upload_source", "create_or_update_tileset", "publish", "wait"}, actions)
	assert.Equal(t, "upload out/roads.geojson as tileset source acme/roads-v2", p.Steps[2].Description)

	layer := p.Recipe["layers"].(map[string]any)["roads"].(map[string]any)
	assert.Equal(t, 4, layer["minzoom"])
	assert.Equal(t, 14, layer["maxzoom"])

	plans, err = Plan(cfg, "other", cfg.Sources)
	require.NoError(t, err)
	assert.Equal(t, "other.roads.v2", plans[0].TilesetID)

	cfg.Username = ""
	_, err = Plan(cfg, "", cfg.Sources)
	assert.Error(t, err)
}

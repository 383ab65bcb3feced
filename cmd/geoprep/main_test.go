package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/woozymasta/geoprep/internal/flatgeobuf"
)

const sampleTopoJSON = `{
  "type": "Topology",
  "transform": {"scale": [1, 1], "translate": [0, 0]},
  "objects": {
    "areas": {"type": "GeometryCollection", "geometries": [
      {"type": "Polygon", "arcs": [[0]], "properties": {"name": "a"}},
      {"type": "Point", "coordinates": [5, 5], "id": 7}
    ]}
  },
  "arcs": [[[0, 0], [0, 1], [1, 0], [0, -1], [-1, 0]]]
}`

// An exterior ring wound clockwise and a point with latitude out of range.
const sampleGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}},
  {"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[10,95]}}
]}`

const brokenGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0]]}}
]}`

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestRender(t *testing.T) {
	v := map[string]int{"a": 1}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", v, nil))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", v, nil))
	assert.Equal(t, "a: 1\n", buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "text", v, func(w io.Writer) error {
		_, err := io.WriteString(w, "plain")
		return err
	}))
	assert.Equal(t, "plain", buf.String())
}

func TestFormatsCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := &FormatsCommand{Format: "text", out: &buf}
	require.NoError(t, cmd.Execute(nil))
	assert.True(t, strings.HasPrefix(buf.String(), "NAME"))
	assert.Contains(t, buf.String(), "TopoJSON")

	buf.Reset()
	cmd.Format = "json"
	require.NoError(t, cmd.Execute(nil))
	var formats []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &formats))
	assert.NotEmpty(t, formats)
}

func TestConvertCommandStdout(t *testing.T) {
	var buf bytes.Buffer
	cmd := &ConvertCommand{
		InputOptions: InputOptions{Input: writeFile(t, "areas.topojson", sampleTopoJSON)},
		Validate:     true,
		out:          &buf,
	}
	require.NoError(t, cmd.Execute(nil))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         any            `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "a", fc.Features[0].Properties["name"])
	assert.EqualValues(t, 7, fc.Features[1].ID)
}

func TestConvertCommandFlatGeobuf(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "areas.fgb")
	cmd := &ConvertCommand{
		InputOptions: InputOptions{Input: writeFile(t, "areas.json", sampleTopoJSON), From: "topojson"},
		Output:       out,
	}
	require.NoError(t, cmd.Execute(nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, flatgeobuf.Magic[:3]))
}

func TestConvertCommandUnknownFormat(t *testing.T) {
	cmd := &ConvertCommand{InputOptions: InputOptions{Input: writeFile(t, "data.xyz", "{}")}, out: io.Discard}
	assert.Error(t, cmd.Execute(nil))
}

func TestValidateCommand(t *testing.T) {
	input := writeFile(t, "data.geojson", sampleGeoJSON)

	var buf bytes.Buffer
	cmd := &ValidateCommand{
		InputOptions: InputOptions{Input: input},
		MaxWarnings:  100,
		Format:       "text",
		Verbose:      true,
		out:          &buf,
	}
	require.NoError(t, cmd.Execute(nil))
	assert.Contains(t, buf.String(), "Input: "+input+" (GeoJSON)")
	assert.Contains(t, buf.String(), "Validated 2 features")
	assert.Contains(t, buf.String(), "wrong_winding (warning):")
	assert.Contains(t, buf.String(), "feature 1: Latitude 95 is out of range [-90, 90]")

	cmd.Strict = true
	assert.Error(t, cmd.Execute(nil))

	cmd.Strict = false
	cmd.NoWinding = true
	cmd.NoCoordinates = true
	cmd.Format = "yaml"
	buf.Reset()
	require.NoError(t, cmd.Execute(nil))

	var rep struct {
		Format     string `yaml:"format"`
		Validation struct {
			Valid    bool  `yaml:"valid"`
			Warnings []any `yaml:"warnings"`
		} `yaml:"validation"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, "GeoJSON", rep.Format)
	assert.True(t, rep.Validation.Valid)
	assert.Empty(t, rep.Validation.Warnings)
}

func TestValidateCommandInvalid(t *testing.T) {
	var buf bytes.Buffer
	cmd := &ValidateCommand{
		InputOptions: InputOptions{Input: writeFile(t, "line.geojson", brokenGeoJSON)},
		Format:       "json",
		out:          &buf,
	}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 features invalid")

	var rep map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, false, rep["validation"].(map[string]any)["valid"])

	cmd.MaxWarnings = -1
	assert.Error(t, cmd.Execute(nil))
}

func TestRecipeCommand(t *testing.T) {
	cfg := writeFile(t, "config.yaml", `
username: acme
sources:
  - name: countries
    path: countries.topojson
    tileset:
      id: world.countries
      name: Countries
  - name: plain
    path: plain.geojson
`)

	var buf bytes.Buffer
	cmd := &RecipeCommand{ConfigFile: cfg, Sources: []string{"countries", "plain", "missing"}, Format: "json", out: &buf}
	require.NoError(t, cmd.Execute(nil))

	var plans []struct {
		TilesetID string `json:"tileset_id"`
		SourceID  string `json:"source_id"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "acme.world.countries", plans[0].TilesetID)
	assert.Equal(t, "world-countries", plans[0].SourceID)

	buf.Reset()
	cmd.Format = "text"
	cmd.Username = "other"
	require.NoError(t, cmd.Execute(nil))
	assert.Contains(t, buf.String(), "countries -> other.world.countries (source world-countries)")
	assert.Contains(t, buf.String(), "  1. convert: ")

	cmd.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Error(t, cmd.Execute(nil))
}

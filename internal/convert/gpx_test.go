package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="52.5" lon="13.4"><ele>34.5</ele><name>Camp</name><desc>base</desc><time>2024-05-01T08:00:00Z</time></wpt>
  <wpt lat="52.6" lon="13.5"></wpt>
  <rte><name>Plan</name><rtept lat="1" lon="2"/><rtept lat="3" lon="4"/></rte>
  <rte><name>Nothing</name></rte>
  <trk>
    <name>Morning</name>
    <trkseg>
      <trkpt lat="10" lon="20"><ele>100</ele><time>2024-05-01T08:00:00Z</time></trkpt>
      <trkpt lat="10.1" lon="20.1"><ele>110</ele></trkpt>
      <trkpt lat="10.2" lon="20.2"><ele>120</ele><time>2024-05-01T08:30:00Z</time></trkpt>
    </trkseg>
    <trkseg></trkseg>
    <trkseg>
      <trkpt lat="11" lon="21"/>
      <trkpt lat="11.1" lon="21.1"><ele>5</ele></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestGPXAllFeatures(t *testing.T) {
	res := convertBytes(t, GPX{}, []byte(sampleGPX), "walk.gpx", Options{})
	require.Equal(t, 5, res.FeatureCount)

	camp := res.Collection.Features[0]
	assert.Equal(t, []float64{13.4, 52.5, 34.5}, camp.Geometry.FlatCoords())
	assert.Equal(t, map[string]any{
		"type":        "waypoint",
		"name":        "Camp",
		"description": "base",
		"elevation":   34.5,
		"time":        "2024-05-01T08:00:00Z",
	}, camp.Properties)
	assert.Equal(t, geom.XY, res.Collection.Features[1].Geometry.Layout())

	route := res.Collection.Features[2]
	assert.Equal(t, "route", route.Properties["type"])
	assert.Equal(t, []float64{2, 1, 4, 3}, route.Geometry.FlatCoords())

	track := res.Collection.Features[3]
	assert.Equal(t, geom.XYZ, track.Geometry.Layout())
	assert.Equal(t, map[string]any{
		"type":             "track",
		"name":             "Morning",
		"segment":          0,
		"start_time":       "2024-05-01T08:00:00Z",
		"end_time":         "2024-05-01T08:30:00Z",
		"duration_seconds": 1800.0,
	}, track.Properties)

	last := res.Collection.Features[4]
	assert.Equal(t, 2, last.Properties["segment"])
	assert.Equal(t, geom.XY, last.Geometry.Layout())
	assert.NotContains(t, last.Properties, "duration_seconds")

	assert.Equal(t, []string{
		"Empty route 'Nothing' skipped",
		"Empty track segment in 'Morning' skipped",
	}, res.Warnings)
	assert.Equal(t, 2, res.Metadata["waypoints"])
	assert.Equal(t, 1, res.Metadata["routes"])
	assert.Equal(t, 2, res.Metadata["tracks"])
}

func TestGPXSelectors(t *testing.T) {
	res := convertBytes(t, GPX{}, []byte(sampleGPX), "walk.gpx", Options{SkipWaypoints: true, SkipRoutes: true})
	assert.Equal(t, 2, res.FeatureCount)
	assert.Equal(t, 0, res.Metadata["waypoints"])

	res = convertBytes(t, GPX{}, []byte(sampleGPX), "walk.gpx", Options{SkipWaypoints: true, SkipRoutes: true, SkipTracks: true})
	assert.Zero(t, res.FeatureCount)
	assert.Equal(t, []string{"No features found in GPX file"}, res.Warnings)
}

func TestGPXErrors(t *testing.T) {
	_, err := GPX{}.Convert(context.Background(), FromBytes([]byte("<kml/>"), "a.gpx"), Options{})
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "GPX", ce.Format)

	_, err = GPX{}.Convert(context.Background(), FromValue(map[string]any{}), Options{})
	require.ErrorAs(t, err, &ce)
}

func TestGPXLayoutFromElevation(t *testing.T) {
	doc := `<gpx version="1.1" creator="test">
  <rte>
    <rtept lat="1" lon="2"><ele>7</ele><time>2024-05-01T08:00:00.500Z</time></rtept>
    <rtept lat="3" lon="4"><ele>9</ele></rtept>
  </rte>
  <trk><name>Flat</name><trkseg><trkpt lat="1" lon="1"><ele>0</ele></trkpt><trkpt lat="2" lon="2"><ele>3</ele></trkpt></trkseg></trk>
</gpx>`
	res := convertBytes(t, GPX{}, []byte(doc), "a.gpx", Options{})
	require.Equal(t, 2, res.FeatureCount)
	assert.Equal(t, []float64{2, 1, 7, 4, 3, 9}, res.Collection.Features[0].Geometry.FlatCoords())
	assert.Equal(t, geom.XY, res.Collection.Features[1].Geometry.Layout())
	assert.Equal(t, []float64{1, 1, 2, 2}, res.Collection.Features[1].Geometry.FlatCoords())
}

func TestGPXBadTime(t *testing.T) {
	doc := `<gpx version="1.1"><wpt lat="1" lon="2"><time>yesterday</time></wpt></gpx>`
	_, err := GPX{}.Convert(context.Background(), FromBytes([]byte(doc), "a.gpx"), Options{})
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "parse GPX")
}

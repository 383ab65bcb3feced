//go:build !geoparquet

package convert

func newGeoParquet() Converter {
	return unavailable{info: geoParquetInfo(false)}
}

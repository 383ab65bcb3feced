//go:build !gpkg

package convert

func newGeoPackage() Converter {
	return unavailable{info: geoPackageInfo(false)}
}

package convert

// Formats whose converters depend on build tags.

func geoPackageInfo(available bool) FormatInfo {
	return FormatInfo{
		Name:       "GeoPackage",
		Extensions: []string{".gpkg"},
		MIMETypes:  []string{"application/geopackage+sqlite3"},
		Requires:   "modernc.org/sqlite",
		Available:  available,
	}
}

func geoParquetInfo(available bool) FormatInfo {
	return FormatInfo{
		Name:       "GeoParquet",
		Extensions: []string{".parquet", ".geoparquet"},
		MIMETypes:  []string{"application/vnd.apache.parquet"},
		Requires:   "github.com/apache/arrow-go/v18",
		Available:  available,
	}
}

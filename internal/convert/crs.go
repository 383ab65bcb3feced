package convert

import "strings"

// isWGS84 reports whether a CRS description (EPSG code, URN or WKT) names
// geographic WGS84 coordinates.
func isWGS84(crs string) bool {
	s := strings.ToUpper(strings.TrimSpace(crs))
	if strings.HasPrefix(s, "PROJCS") || strings.HasPrefix(s, "PROJCRS") {
		return false
	}
	return strings.Contains(s, "4326") ||
		strings.Contains(s, "CRS84") ||
		(strings.Contains(s, "WGS") && strings.Contains(s, "84"))
}

// wktName returns the quoted name of the outermost WKT node.
func wktName(wkt string) string {
	start := strings.Index(wkt, `["`)
	if start < 0 {
		return ""
	}
	rest := wkt[start+2:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// checkCRS records crs in the result metadata and warns when it is not WGS84.
func (r *Result) checkCRS(crs string) {
	if crs == "" {
		return
	}
	r.Metadata["crs"] = crs
	if !isWGS84(crs) {
		r.warnf("CRS is %s, not WGS84. Data may need reprojection for web mapping.", crs)
	}
}

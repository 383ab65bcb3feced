package convert

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWGS84(t *testing.T) {
	for crs, want := range map[string]bool{
		"EPSG:4326":                 true,
		"urn:ogc:def:crs:OGC::CRS84": true,
		wgs84PRJ:                    true,
		`PROJCS["WGS_84_Pseudo_Mercator",GEOGCS["GCS_WGS_1984"]]`: false,
		"EPSG:3857": false,
		"ETRS89":    false,
	} {
		assert.Equal(t, want, isWGS84(crs), crs)
	}
}

func TestWKTName(t *testing.T) {
	assert.Equal(t, "GCS_WGS_1984", wktName(wgs84PRJ))
	assert.Equal(t, "", wktName("EPSG:4326"))
	assert.Equal(t, "", wktName(`GEOGCS["unterminated`))
}

func TestCheckCRS(t *testing.T) {
	res := newResult("x")
	res.checkCRS("")
	assert.Empty(t, res.Metadata)

	res.checkCRS("OGC:CRS84")
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "OGC:CRS84", res.Metadata["crs"])

	res.checkCRS("EPSG:2154")
	assert.Equal(t, []string{"CRS is EPSG:2154, not WGS84. Data may need reprojection for web mapping."}, res.Warnings)
}

func TestLookupEncoding(t *testing.T) {
	for _, label := range []string{"", "UTF8", "65001", "1251", "windows-1252", "ISO-8859-1", " cp866 "} {
		enc, err := lookupEncoding(label)
		require.NoError(t, err, label)
		assert.NotNil(t, enc, label)
	}

	_, err := lookupEncoding("klingon")
	assert.Error(t, err)

	r, err := xmlCharsetReader("windows-1251", strings.NewReader("\xcf\xf0\xe8"))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "При", string(data))
}

package server

import (
	"hash/crc32"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/geo"
	"github.com/woozymasta/geoprep/internal/validate"
)

// DefaultMaxBodySize limits request bodies when no limit is configured.
const DefaultMaxBodySize = 256 << 20

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Registry    *convert.Registry
	Validation  validate.Options
	Encoder     geo.Encoder
	MaxBodySize int64

	formatsJSON []byte
	formatsETag string
	byMIME      map[string]string
}

// NewServerContext prepares the handlers state from the registry.
// The format table is rendered once since the registry never changes.
func NewServerContext(reg *convert.Registry, opts validate.Options) *ServerContext {
	formats := reg.Formats()

	byMIME := make(map[string]string)
	available := 0
	for _, f := range formats {
		if f.Available {
			available++
		} else {
			log.Debug().
				Str("format", f.Name).
				Str("requires", f.Requires).
				Msg("Format not available in this build")
		}
		for _, m := range f.MIMETypes {
			if _, ok := byMIME[m]; !ok {
				byMIME[m] = f.Name
			}
		}
	}

	// Marshal of plain structs never fails
	data, _ := json.Marshal(formats)

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, int64(len(data)), 16)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, uint64(crc32.ChecksumIEEE(data)), 16)
	buf = append(buf, '"')

	log.Info().
		Int("formats_total", len(formats)).
		Int("formats_available", available).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Registry:    reg,
		Validation:  opts,
		MaxBodySize: DefaultMaxBodySize,
		formatsJSON: data,
		formatsETag: string(buf),
		byMIME:      byMIME,
	}
}

// formatForContentType returns the format registered for a media type,
// ignoring parameters such as charset.
func (s *ServerContext) formatForContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return s.byMIME[strings.ToLower(strings.TrimSpace(ct))]
}

// Routes registers the API handlers on a new mux wrapped in the request logger.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/formats", s.HandleFormats)
	mux.HandleFunc("/api/convert", s.HandleConvert)
	mux.HandleFunc("/api/validate", s.HandleValidate)
	return RequestLogger(mux)
}

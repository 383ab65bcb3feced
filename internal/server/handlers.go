// Package server exposes the converter registry and the validator over HTTP.
package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/geoprep/internal/convert"
	"github.com/woozymasta/geoprep/internal/geo"
	"github.com/woozymasta/geoprep/internal/validate"
)

const etagCap = 64

// Response headers set by the convert handler.
const (
	HeaderWarnings = "X-Conversion-Warnings"
	HeaderFeatures = "X-Feature-Count"
	HeaderValid    = "X-Validation-Valid"
)

type errorResponse struct {
	Error string `json:"error"`
}

type convertResponse struct {
	*convert.Result
	Validation *validate.Result `json:"validation,omitempty"`
}

// HandleFormats serves the table of registered formats.
func (s *ServerContext) HandleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == s.formatsETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", s.formatsETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.formatsJSON)
}

// HandleConvert converts the request body and returns GeoJSON.
//
// Query parameters: format, filename, object, layer, encoding,
// skip_waypoints, skip_routes, skip_tracks, validate and report.
func (s *ServerContext) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	format := q.Get("format")
	filename := q.Get("filename")
	if format == "" && filename == "" {
		format = s.formatForContentType(r.Header.Get("Content-Type"))
	}

	opts := convert.Options{
		Object:        q.Get("object"),
		Layer:         q.Get("layer"),
		Encoding:      q.Get("encoding"),
		SkipWaypoints: queryBool(q.Get("skip_waypoints")),
		SkipRoutes:    queryBool(q.Get("skip_routes")),
		SkipTracks:    queryBool(q.Get("skip_tracks")),
	}

	res, err := s.Registry.ConvertSource(r.Context(), convert.FromBytes(body, filename), format, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	var vres *validate.Result
	if queryBool(q.Get("validate")) {
		vres = validate.Validate(res.Collection, s.Validation)
	}

	log.Debug().
		Str("format", res.SourceFormat).
		Int("features", res.FeatureCount).
		Int("warnings", len(res.Warnings)).
		Msg("Request body converted")

	if queryBool(q.Get("report")) {
		writeJSON(w, http.StatusOK, convertResponse{Result: res, Validation: vres})
		return
	}

	data, err := s.Encoder.Encode(res.Collection)
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", geo.MediaType)
	h.Set(HeaderWarnings, strconv.Itoa(len(res.Warnings)))
	h.Set(HeaderFeatures, strconv.Itoa(res.FeatureCount))
	if vres != nil {
		h.Set(HeaderValid, strconv.FormatBool(vres.Valid))
	}
	_, _ = w.Write(data)
}

// HandleValidate validates a GeoJSON body and returns the validation result.
//
// Query parameters override the validator settings: intersections,
// max_warnings.
func (s *ServerContext) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := s.Validation
	q := r.URL.Query()
	if v := q.Get("intersections"); v != "" {
		opts.CheckIntersections = queryBool(v)
	}
	if v := q.Get("max_warnings"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "max_warnings must be a non-negative integer"})
			return
		}
		opts.MaxWarnings = n
	}

	res, err := s.Registry.ConvertSource(r.Context(), convert.FromBytes(body, ""), "geojson", convert.Options{})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validate.Validate(res.Collection, opts))
}

func (s *ServerContext) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	return body, nil
}

var errEmptyBody = errors.New("request body is empty")

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var (
		unknown     *convert.UnknownFormatError
		unavailable *convert.UnavailableFormatError
		conversion  *convert.ConversionError
		tooLarge    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &unknown), errors.Is(err, errEmptyBody):
		return http.StatusBadRequest
	case errors.As(err, &unavailable):
		return http.StatusNotImplemented
	case errors.As(err, &conversion):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

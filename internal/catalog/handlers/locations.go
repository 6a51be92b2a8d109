package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"locations-server/internal/catalog"
	"locations-server/internal/freshness"
	"locations-server/internal/ingest"
	"locations-server/internal/search"
	"locations-server/internal/shared/errors"
	"locations-server/internal/shared/response"
)

type Options struct {
	DefaultStrategy search.Strategy
	DefaultSchema   ingest.Schema
	// ClientMaxAge is the Cache-Control max-age sent with search results.
	ClientMaxAge   time.Duration
	MaxUploadBytes int64
}

type LocationsHandler struct {
	service *catalog.Service
	opts    Options
}

func NewLocationsHandler(service *catalog.Service, opts Options) *LocationsHandler {
	if opts.DefaultSchema.Name == "" {
		opts.DefaultSchema = ingest.SchemaFull
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	return &LocationsHandler{service: service, opts: opts}
}

type TouchResponse struct {
	LastModified time.Time `json:"last_modified"`
}

// Search answers GET /api/locations?search=&max=&strategy=. Clients holding
// a copy newer than the last update get 304 with no body.
func (h *LocationsHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "search_locations")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	query := r.URL.Query()
	req := search.Request{Query: query.Get("search"), Strategy: h.opts.DefaultStrategy}

	if raw := query.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, r, logger, errors.Validationf("invalid max %q", raw))
			return
		}
		req.MaxResults = n
	}

	if raw := query.Get("strategy"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid strategy format", err))
			return
		}
		strategy, err := search.ParseStrategy(code)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid strategy", err))
			return
		}
		req.Strategy = strategy
	}

	tracker := h.service.Tracker()
	if req.Query != "" && tracker.NotModified(r) {
		tracker.SetCacheHeaders(w, h.opts.ClientMaxAge)
		response.NotModified(w)
		return
	}

	places, asOf, err := h.service.Search(ctx, req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	freshness.WriteCacheHeaders(w, asOf, h.opts.ClientMaxAge)
	response.Success(w, http.StatusOK, places)
}

// Upload accepts a multipart form with the CSV in field "csv" and an
// optional "schema" of full or reduced.
func (h *LocationsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "upload_locations")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid multipart upload", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	schema := h.opts.DefaultSchema
	if name := r.FormValue("schema"); name != "" {
		s, err := ingest.SchemaByName(name)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid schema", err))
			return
		}
		schema = s
	}

	file, header, err := r.FormFile("csv")
	if err != nil {
		response.Error(w, r, logger, errors.WrapValidation("csv file is required", err))
		return
	}
	defer file.Close()

	logger.Info("Upload received", "filename", header.Filename, "size", header.Size, "schema", schema.Name)

	result, err := h.service.Upload(ctx, file, schema)
	if err != nil {
		if errors.GetType(err) == errors.ErrorTypeInternal {
			response.ErrorWithMessage(w, r, logger, err, "upload failed")
			return
		}
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, result)
}

func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "delete_locations")

	if r.Method != http.MethodDelete {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	report, err := h.service.DeleteAll(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, report)
}

func (h *LocationsHandler) Touch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "touch_locations")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	last, err := h.service.Touch(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, TouchResponse{LastModified: last})
}

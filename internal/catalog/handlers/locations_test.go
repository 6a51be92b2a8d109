package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locations-server/internal/catalog"
	"locations-server/internal/freshness"
	"locations-server/internal/ingest"
	"locations-server/internal/location"
	"locations-server/internal/search"
	"locations-server/internal/shared/response"
)

func newTestHandler(t *testing.T) *LocationsHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := location.NewMemoryStore()
	tracker := freshness.NewTracker(freshness.NewFileMarker(filepath.Join(t.TempDir(), "locations.json")), logger)
	require.NoError(t, tracker.Load(context.Background()))

	service := catalog.NewService(
		store,
		search.NewEngine(store.Reader(), search.Options{}, logger),
		tracker,
		search.NewMemoryCache(16, time.Minute),
		ingest.NewPipeline(ingest.Options{}, logger),
		logger,
	)
	return NewLocationsHandler(service, Options{
		DefaultStrategy: search.TieredUnion,
		DefaultSchema:   ingest.SchemaReduced,
		ClientMaxAge:    time.Minute,
	})
}

func multipartUpload(t *testing.T, schema, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if schema != "" {
		require.NoError(t, mw.WriteField("schema", schema))
	}
	if body != "" {
		part, err := mw.CreateFormFile("csv", "locations.csv")
		require.NoError(t, err)
		_, err = io.WriteString(part, body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/locations", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func seed(t *testing.T, h *LocationsHandler) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Upload(rec, multipartUpload(t, "", strings.Join([]string{
		ingest.SchemaReduced.Header(),
		"CountyA,RegionA,null,TownA,city,100",
		"CountyA,RegionA,null,TownB,city,50",
	}, "\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestSearch(t *testing.T) {
	h := newTestHandler(t)
	seed(t, h)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/locations?search=Town&strategy=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var places []location.Place
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&places))
	require.Len(t, places, 2)
	assert.Equal(t, "TownA", places[0].Name)
	assert.Equal(t, "RegionA", places[0].Region.Name)
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	assert.Equal(t, "max-age=60", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/locations?search=Town&max=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&places))
	assert.Len(t, places, 1)
}

func TestSearch_InvalidQueryReturnsEmptyList(t *testing.T) {
	h := newTestHandler(t)
	seed(t, h)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/locations?search=%F0%9F%8F%99", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearch_ConditionalRequest(t *testing.T) {
	h := newTestHandler(t)
	seed(t, h)

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/locations?search=Town", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	lastModified := rec.Header().Get("Last-Modified")

	req := httptest.NewRequest(http.MethodGet, "/api/locations?search=Town", nil)
	req.Header.Set("If-Modified-Since", lastModified)
	rec = httptest.NewRecorder()
	h.Search(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/locations?search=Town", nil)
	req.Header.Set("If-Modified-Since", "Mon, 01 Jan 2001 00:00:00 GMT")
	rec = httptest.NewRecorder()
	h.Search(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch_BadRequests(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"missing search", http.MethodGet, "/api/locations", http.StatusBadRequest},
		{"empty search", http.MethodGet, "/api/locations?search=", http.StatusBadRequest},
		{"blank search is a query", http.MethodGet, "/api/locations?search=%20", http.StatusOK},
		{"bad max", http.MethodGet, "/api/locations?search=Town&max=abc", http.StatusBadRequest},
		{"zero max", http.MethodGet, "/api/locations?search=Town&max=0", http.StatusBadRequest},
		{"bad strategy", http.MethodGet, "/api/locations?search=Town&strategy=x", http.StatusBadRequest},
		{"unknown strategy", http.MethodGet, "/api/locations?search=Town&strategy=9", http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/locations?search=Town", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUpload(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartUpload(t, "full", strings.Join([]string{
		ingest.SchemaFull.Header(),
		"CountyA,RegionA,MunA,TownA,city,100,20,51.5,46.0,63701000001",
	}, "\n")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result ingest.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.Lines)
	assert.Equal(t, int64(3), result.Places)
}

func TestUpload_Rejected(t *testing.T) {
	h := newTestHandler(t)

	t.Run("record error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartUpload(t, "", strings.Join([]string{
			ingest.SchemaReduced.Header(),
			"CountyA,RegionA,null,TownA,city,abc",
		}, "\n")))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "invalid line 2")
	})

	t.Run("header mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartUpload(t, "", "a,b,c\n1,2,3"))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "invalid header")
	})

	t.Run("unknown schema", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartUpload(t, "tiny", "x"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, multipartUpload(t, "reduced", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Upload(rec, httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader("x")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteAndTouch(t *testing.T) {
	h := newTestHandler(t)
	seed(t, h)

	rec := httptest.NewRecorder()
	h.Delete(rec, httptest.NewRequest(http.MethodDelete, "/api/locations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report location.DeleteReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, int64(4), report.Places)

	rec = httptest.NewRecorder()
	h.Touch(rec, httptest.NewRequest(http.MethodPost, "/api/locations/touch", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var touched TouchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&touched))
	assert.False(t, touched.LastModified.IsZero())

	rec = httptest.NewRecorder()
	h.Touch(rec, httptest.NewRequest(http.MethodGet, "/api/locations/touch", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

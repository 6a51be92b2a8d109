package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"locations-server/internal/catalog"
	"locations-server/internal/shared/errors"
	"locations-server/internal/shared/response"
)

type HealthResponse struct {
	Status       string     `json:"status"`
	Timestamp    string     `json:"timestamp"`
	Database     string     `json:"database"`
	Places       int64      `json:"places"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	catalog *catalog.Service
}

func NewHealthHandler(db Pinger, catalog *catalog.Service) *HealthHandler {
	return &HealthHandler{db: db, catalog: catalog}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "health")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  "disconnected",
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err == nil {
			resp.Database = "connected"
		} else {
			resp.Status = "degraded"
			logger.Warn("Database ping failed", "error", err)
		}
	}

	if count, err := h.catalog.Count(ctx); err == nil {
		resp.Places = count
	} else {
		resp.Status = "degraded"
		logger.Warn("Place count failed", "error", err)
	}

	if last := h.catalog.Tracker().LastModified(); !last.IsZero() {
		resp.LastModified = &last
	}

	response.Success(w, http.StatusOK, resp)
}

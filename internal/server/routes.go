package server

import (
	"log/slog"
	"net/http"

	authHandlers "locations-server/internal/auth/handlers"
	"locations-server/internal/catalog"
	catalogHandlers "locations-server/internal/catalog/handlers"
	"locations-server/internal/middleware"
	serverHandlers "locations-server/internal/server/handlers"
	"locations-server/internal/shared/metrics"
)

type Routes struct {
	db          serverHandlers.Pinger
	catalog     *catalog.Service
	opts        catalogHandlers.Options
	rateLimiter *middleware.RateLimiter
	session     *authHandlers.SessionHandler
}

func NewRoutes(db serverHandlers.Pinger, catalog *catalog.Service, opts catalogHandlers.Options, rateLimiter *middleware.RateLimiter, session *authHandlers.SessionHandler) *Routes {
	return &Routes{
		db:          db,
		catalog:     catalog,
		opts:        opts,
		rateLimiter: rateLimiter,
		session:     session,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.catalog)
	locationsHandler := catalogHandlers.NewLocationsHandler(r.catalog, r.opts)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.Handle("GET /api/locations", r.rateLimiter.Middleware(http.HandlerFunc(locationsHandler.Search)))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("DELETE /api/auth/session", r.session.Delete)

	// Admin-only endpoints
	mux.Handle("POST /api/locations", middleware.RequireAdmin(http.HandlerFunc(locationsHandler.Upload)))
	mux.Handle("DELETE /api/locations", middleware.RequireAdmin(http.HandlerFunc(locationsHandler.Delete)))
	mux.Handle("POST /api/locations/touch", middleware.RequireAdmin(http.HandlerFunc(locationsHandler.Touch)))
	mux.Handle("POST /api/auth/session", middleware.RequireAdmin(http.HandlerFunc(r.session.Create)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "GET /api/locations", "/metrics", "DELETE /api/auth/session"},
		"admin_endpoints", []string{"POST /api/locations", "DELETE /api/locations", "POST /api/locations/touch", "POST /api/auth/session"},
	)

	return mux
}

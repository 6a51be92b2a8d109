package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locations-server/internal/app"
	authHandlers "locations-server/internal/auth/handlers"
	"locations-server/internal/middleware"
	"locations-server/internal/server"
	"locations-server/internal/shared/config"
	"locations-server/internal/shared/cookies"
	"locations-server/internal/shared/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Freshness.WatchInterval > 0 {
		go a.Tracker.Watch(ctx, cfg.Freshness.WatchInterval)
	}

	opts, err := a.HandlerOptions()
	if err != nil {
		return err
	}

	rateLimiter := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
		TrustProxy:        cfg.RateLimit.TrustProxy,
	})

	session := authHandlers.NewSessionHandler(cookies.Options{
		FrontendURL: cfg.Frontend.URL,
		Secure:      cfg.Auth.CookieSecure,
		SameSite:    cfg.Auth.CookieSameSite,
	}, cfg.Auth.TokenExpiration)

	mux := server.NewRoutes(a.DB, a.Catalog, opts, rateLimiter, session).Setup()
	handler := middleware.NewCORS(cfg.Frontend).Middleware(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Locations server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"cache_backend", cfg.Search.CacheBackend,
			"default_strategy", opts.DefaultStrategy.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

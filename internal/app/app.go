// Package app assembles the catalog from configuration. Both the HTTP
// server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"locations-server/internal/catalog"
	catalogHandlers "locations-server/internal/catalog/handlers"
	"locations-server/internal/freshness"
	"locations-server/internal/ingest"
	"locations-server/internal/location"
	"locations-server/internal/search"
	"locations-server/internal/shared/config"
	"locations-server/internal/shared/database"
	"locations-server/internal/shared/redis"
)

type App struct {
	Config  *config.Config
	DB      *database.DB
	Redis   *redis.Client
	Engine  *search.Engine
	Tracker *freshness.Tracker
	Catalog *catalog.Service
}

// New connects to Postgres (and Redis when enabled), applies migrations and
// loads the freshness marker.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx, cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{Config: cfg, DB: db, Redis: rdb}
	if err := a.build(ctx, location.NewDB(db, logger), logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, store location.Database, logger *slog.Logger) error {
	cfg := a.Config

	cache, err := a.newCache()
	if err != nil {
		return err
	}

	a.Engine = search.NewEngine(store.Reader(), search.Options{CandidateLimit: cfg.Search.CandidateLimit}, logger)
	a.Tracker = freshness.NewTracker(freshness.NewFileMarker(cfg.Freshness.MarkerPath), logger)
	pipeline := ingest.NewPipeline(ingest.Options{ScopeByParent: cfg.Ingest.ScopeByParent}, logger)
	a.Catalog = catalog.NewService(store, a.Engine, a.Tracker, cache, pipeline, logger)

	if err := a.Tracker.Load(ctx); err != nil {
		return fmt.Errorf("failed to load freshness marker: %w", err)
	}
	return nil
}

func (a *App) newCache() (search.Cache, error) {
	cfg := a.Config.Search
	switch cfg.CacheBackend {
	case "memory":
		return search.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), nil
	case "redis":
		if a.Redis == nil {
			return nil, fmt.Errorf("redis cache requested but redis is disabled")
		}
		return search.NewRedisCache(a.Redis.Client, cfg.CacheTTL), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// HandlerOptions derives the HTTP handler settings from configuration.
func (a *App) HandlerOptions() (catalogHandlers.Options, error) {
	cfg := a.Config

	strategy, err := search.ParseStrategy(cfg.Search.DefaultStrategy)
	if err != nil {
		return catalogHandlers.Options{}, fmt.Errorf("SEARCH_DEFAULT_STRATEGY: %w", err)
	}
	schema, err := ingest.SchemaByName(cfg.Ingest.Schema)
	if err != nil {
		return catalogHandlers.Options{}, fmt.Errorf("INGEST_SCHEMA: %w", err)
	}

	return catalogHandlers.Options{
		DefaultStrategy: strategy,
		DefaultSchema:   schema,
		ClientMaxAge:    cfg.Search.ClientMaxAge,
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
	}, nil
}

func (a *App) Close() {
	logger := slog.With("component", "app", "operation", "close")
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Error("Failed to close redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}
}

package catalog

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"locations-server/internal/freshness"
	"locations-server/internal/ingest"
	"locations-server/internal/location"
	"locations-server/internal/search"
	"locations-server/internal/shared/errors"
	"locations-server/internal/shared/metrics"
)

// Service ties the store, the search engine and the freshness tracker
// together. Every mutation runs in one transaction and marks the data
// updated after commit.
type Service struct {
	db       location.Database
	engine   *search.Engine
	tracker  *freshness.Tracker
	cache    search.Cache
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewService wires a catalog. cache may be nil to disable result caching.
func NewService(db location.Database, engine *search.Engine, tracker *freshness.Tracker, cache search.Cache, pipeline *ingest.Pipeline, logger *slog.Logger) *Service {
	if cache != nil {
		tracker.Register(cache)
	}
	return &Service{
		db:       db,
		engine:   engine,
		tracker:  tracker,
		cache:    cache,
		pipeline: pipeline,
		logger:   logger,
	}
}

func (s *Service) Tracker() *freshness.Tracker {
	return s.tracker
}

// Search answers req and reports the last-modified time the result belongs
// to. That time is read before the lookup, so a mutation that lands during
// the search can only make the stamp older than the data, never newer.
// Cache entries are keyed by it as well: a result computed before a
// mutation is never served after it, even if it is stored late.
func (s *Service) Search(ctx context.Context, req search.Request) ([]location.Place, time.Time, error) {
	if req.Query == "" {
		return nil, time.Time{}, errors.Validation("empty search")
	}

	asOf := s.tracker.LastModified()
	if s.cache == nil {
		places, err := s.engine.Search(ctx, req)
		return places, asOf, err
	}

	logger := s.logger.With("component", "catalog", "operation", "search", "cache", s.cache.Name())
	key := cacheKey(asOf, req)

	places, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheError(s.cache.Name())
		logger.Warn("Cache lookup failed", "error", err)
	case ok:
		metrics.CacheHit(s.cache.Name())
		return places, asOf, nil
	default:
		metrics.CacheMiss(s.cache.Name())
	}

	places, err = s.engine.Search(ctx, req)
	if err != nil {
		return nil, time.Time{}, err
	}
	if !s.tracker.LastModified().Equal(asOf) {
		logger.Debug("Data changed during search, not caching")
		return places, asOf, nil
	}
	if err := s.cache.Set(ctx, key, places); err != nil {
		metrics.CacheError(s.cache.Name())
		logger.Warn("Cache store failed", "error", err)
	}
	return places, asOf, nil
}

func cacheKey(asOf time.Time, req search.Request) string {
	return strconv.FormatInt(asOf.UnixNano(), 36) + "/" + req.CacheKey()
}

// Upload ingests one CSV upload atomically. Header and record problems are
// returned as validation errors that still match ingest.SchemaError and
// ingest.RecordError with errors.As.
func (s *Service) Upload(ctx context.Context, r io.Reader, schema ingest.Schema) (*ingest.Result, error) {
	logger := s.logger.With("component", "catalog", "operation", "upload", "schema", schema.Name)
	start := time.Now()

	var result *ingest.Result
	err := s.db.InTx(ctx, func(store location.Store) error {
		var err error
		result, err = s.pipeline.Ingest(ctx, store, r, schema)
		return err
	})
	if err != nil {
		var schemaErr *ingest.SchemaError
		var recordErr *ingest.RecordError
		if stderrors.As(err, &schemaErr) || stderrors.As(err, &recordErr) {
			return nil, errors.WrapValidation("upload rejected", err)
		}
		return nil, errors.WrapInternal("upload failed", err)
	}

	if _, err := s.tracker.MarkUpdated(ctx, true); err != nil {
		return nil, errors.WrapInternal("failed to mark data updated", err)
	}

	logger.Info("Upload completed",
		"run_id", result.RunID,
		"lines", result.Lines,
		"settlements", result.Settlements,
		"places", result.Places,
		"elapsed", time.Since(start))
	return result, nil
}

func (s *Service) DeleteAll(ctx context.Context) (*location.DeleteReport, error) {
	logger := s.logger.With("component", "catalog", "operation", "delete_all")

	var report *location.DeleteReport
	err := s.db.InTx(ctx, func(store location.Store) error {
		var err error
		report, err = store.DeleteAll(ctx)
		return err
	})
	if err != nil {
		return nil, errors.WrapInternal("delete failed", err)
	}

	if _, err := s.tracker.MarkUpdated(ctx, true); err != nil {
		return nil, errors.WrapInternal("failed to mark data updated", err)
	}

	logger.Info("Deleted all locations", "rows", report.Total())
	return report, nil
}

// Touch marks the data updated without changing it, invalidating clients
// and caches.
func (s *Service) Touch(ctx context.Context) (time.Time, error) {
	last, err := s.tracker.MarkUpdated(ctx, true)
	if err != nil {
		return time.Time{}, errors.WrapInternal("failed to mark data updated", err)
	}
	return last, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.db.Reader().CountPlaces(ctx)
}

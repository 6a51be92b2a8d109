package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locations-server/internal/ingest"
	"locations-server/internal/location"
	"locations-server/internal/search"
	"locations-server/internal/shared/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxUploadMB: 8},
		Search: config.SearchConfig{
			DefaultStrategy: int(search.RankSort),
			CandidateLimit:  100,
			CacheBackend:    "memory",
			CacheSize:       8,
			CacheTTL:        time.Minute,
			ClientMaxAge:    30 * time.Second,
		},
		Freshness: config.FreshnessConfig{MarkerPath: filepath.Join(t.TempDir(), "locations.json")},
		Ingest:    config.IngestConfig{Schema: "reduced"},
	}
}

func TestBuild(t *testing.T) {
	a := &App{Config: testConfig(t)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, a.build(context.Background(), location.NewMemoryStore(), logger))
	assert.NotNil(t, a.Catalog)
	assert.False(t, a.Tracker.LastModified().IsZero())

	opts, err := a.HandlerOptions()
	require.NoError(t, err)
	assert.Equal(t, search.RankSort, opts.DefaultStrategy)
	assert.Equal(t, ingest.SchemaReduced.Name, opts.DefaultSchema.Name)
	assert.Equal(t, int64(8<<20), opts.MaxUploadBytes)
	assert.Equal(t, 30*time.Second, opts.ClientMaxAge)
}

func TestNewCache(t *testing.T) {
	a := &App{Config: testConfig(t)}

	cache, err := a.newCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cache.Name())

	a.Config.Search.CacheBackend = "none"
	cache, err = a.newCache()
	require.NoError(t, err)
	assert.Nil(t, cache)

	a.Config.Search.CacheBackend = "redis"
	_, err = a.newCache()
	assert.Error(t, err)
}

func TestHandlerOptions_Invalid(t *testing.T) {
	a := &App{Config: testConfig(t)}
	a.Config.Search.DefaultStrategy = 17
	_, err := a.HandlerOptions()
	assert.Error(t, err)

	a = &App{Config: testConfig(t)}
	a.Config.Ingest.Schema = "tiny"
	_, err = a.HandlerOptions()
	assert.Error(t, err)
}

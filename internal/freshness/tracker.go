package freshness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"locations-server/internal/shared/metrics"
)

// Clearer is a cache the tracker empties when data changes.
type Clearer interface {
	Name() string
	Clear(ctx context.Context) error
}

// Tracker owns the data's last-modified timestamp. It is created once at
// startup and shared by every handler.
type Tracker struct {
	mu     sync.RWMutex
	last   time.Time
	marker Marker
	caches []Clearer
	now    func() time.Time
	logger *slog.Logger
}

func NewTracker(marker Marker, logger *slog.Logger) *Tracker {
	return &Tracker{
		marker: marker,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Register adds caches to clear on MarkUpdated(ctx, true).
func (t *Tracker) Register(caches ...Clearer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range caches {
		if c != nil {
			t.caches = append(t.caches, c)
		}
	}
}

// Load reads the persisted timestamp. A missing or unreadable marker is
// replaced with a fresh one and the caches are cleared.
func (t *Tracker) Load(ctx context.Context) error {
	logger := t.logger.With("component", "freshness_tracker", "operation", "load")

	last, err := t.marker.Load(ctx)
	if err == nil && !last.IsZero() {
		t.mu.Lock()
		t.last = last
		t.mu.Unlock()
		logger.Info("Loaded freshness marker", "last_modified", last)
		return nil
	}
	if err != nil && !errors.Is(err, ErrNoMarker) {
		logger.Warn("Freshness marker unreadable, resetting", "error", err)
	}

	_, err = t.markUpdated(ctx, true, "startup")
	return err
}

// MarkUpdated advances the timestamp, persists it and, when clear is set,
// empties every registered cache. The new timestamp is always strictly
// later than the previous one.
func (t *Tracker) MarkUpdated(ctx context.Context, clear bool) (time.Time, error) {
	reason := "mark"
	if clear {
		reason = "clear"
	}
	return t.markUpdated(ctx, clear, reason)
}

func (t *Tracker) markUpdated(ctx context.Context, clear bool, reason string) (time.Time, error) {
	logger := t.logger.With("component", "freshness_tracker", "operation", "mark_updated", "reason", reason)

	t.mu.Lock()
	now := t.now()
	if !now.After(t.last) {
		now = t.last.Add(time.Nanosecond)
	}
	if err := t.marker.Save(ctx, now); err != nil {
		t.mu.Unlock()
		logger.Error("Failed to save freshness marker", "error", err)
		return time.Time{}, err
	}
	t.last = now
	caches := t.caches
	t.mu.Unlock()

	metrics.Invalidated(reason)

	if clear {
		t.clearCaches(ctx, caches, logger)
	}

	logger.Info("Data marked updated", "last_modified", now, "caches_cleared", clear)
	return now, nil
}

// Refresh adopts a newer timestamp saved by another process, such as the
// CLI, and clears the caches when it finds one.
func (t *Tracker) Refresh(ctx context.Context) error {
	saved, err := t.marker.Load(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if !saved.After(t.last) {
		t.mu.Unlock()
		return nil
	}
	t.last = saved
	caches := t.caches
	t.mu.Unlock()

	metrics.Invalidated("external")
	t.clearCaches(ctx, caches, t.logger.With("component", "freshness_tracker", "operation", "refresh"))
	t.logger.Info("Adopted external freshness marker", "last_modified", saved)
	return nil
}

// Watch calls Refresh every interval until ctx is done.
func (t *Tracker) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil && !errors.Is(err, ErrNoMarker) {
				t.logger.Warn("Freshness refresh failed", "error", err)
			}
		}
	}
}

func (t *Tracker) clearCaches(ctx context.Context, caches []Clearer, logger *slog.Logger) {
	for _, c := range caches {
		if err := c.Clear(ctx); err != nil {
			metrics.CacheError(c.Name())
			logger.Warn("Failed to clear cache", "cache", c.Name(), "error", err)
		}
	}
}

func (t *Tracker) LastModified() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsFresh reports whether a client that saw the data at since still holds
// the current version. Both sides are compared at whole-second precision,
// the resolution of HTTP dates.
func (t *Tracker) IsFresh(since time.Time) bool {
	if since.IsZero() {
		return false
	}
	last := t.LastModified()
	if last.IsZero() {
		return false
	}
	return !last.Truncate(time.Second).After(since.Truncate(time.Second))
}

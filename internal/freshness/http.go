package freshness

import (
	"fmt"
	"net/http"
	"time"
)

// NotModified reports whether the request's If-Modified-Since header shows
// the client already holds the current data.
func (t *Tracker) NotModified(r *http.Request) bool {
	header := r.Header.Get("If-Modified-Since")
	if header == "" {
		return false
	}
	since, err := http.ParseTime(header)
	if err != nil {
		return false
	}
	return t.IsFresh(since)
}

// SetCacheHeaders stamps the tracker's current last-modified time.
func (t *Tracker) SetCacheHeaders(w http.ResponseWriter, maxAge time.Duration) {
	WriteCacheHeaders(w, t.LastModified(), maxAge)
}

// WriteCacheHeaders stamps last, the time the response body was read at.
func WriteCacheHeaders(w http.ResponseWriter, last time.Time, maxAge time.Duration) {
	if !last.IsZero() {
		w.Header().Set("Last-Modified", last.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(maxAge/time.Second)))
}

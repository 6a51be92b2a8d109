package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locations-server/internal/auth"
	"locations-server/internal/shared/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func mintToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateJWT("tester", role, time.Hour)
	require.NoError(t, err)
	return token
}

func TestRequireAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	admin := mintToken(t, auth.RoleAdmin)
	viewer := mintToken(t, "viewer")

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin) }, http.StatusNoContent},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+admin) }, http.StatusNoContent},
		{"cookie admin", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: admin}) }, http.StatusNoContent},
		{"bearer viewer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+viewer) }, http.StatusForbidden},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+admin) }, http.StatusUnauthorized},
	}

	handler := RequireAdmin(okHandler)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/locations", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestJWTMiddleware_StoresClaims(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	token := mintToken(t, auth.RoleAdmin)

	var got *auth.Claims
	handler := JWTMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaimsFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/locations/touch", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "tester", got.Subject)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, RateLimitConfig{Enabled: true, RequestsPerSecond: 0.5, BurstSize: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(okHandler)

	call := func(remote, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/locations?search=Nov", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1111", "").Code)

	rec := call("10.0.0.1:2222", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1111", "").Code)
	// proxy headers are ignored unless trusted
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3333", "192.0.2.9").Code)

	// rejected requests do not consume tokens
	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:4444", "").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(context.Background(), RateLimitConfig{Enabled: false, BurstSize: 0})
	handler := rl.Middleware(okHandler)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(context.Background(), RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	now := time.Now()
	rl.now = func() time.Time { return now }

	require.Zero(t, rl.reserve("10.0.0.1"))
	require.Zero(t, rl.reserve("10.0.0.2"))

	now = now.Add(time.Minute)
	require.Zero(t, rl.reserve("10.0.0.2"))

	assert.Equal(t, 0, rl.sweep(now))
	assert.Equal(t, 1, rl.sweep(now.Add(clientIdleAfter-time.Minute)))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", getClientIP(req, false))
	assert.Equal(t, "192.0.2.1", getClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", getClientIP(req, true))
}

func TestCORS(t *testing.T) {
	handler := NewCORS(config.FrontendConfig{URL: "http://localhost:3000"}).Middleware(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/locations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

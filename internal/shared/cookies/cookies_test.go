package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndClearAuthCookie(t *testing.T) {
	opts := Options{FrontendURL: "https://admin.example.org:8443", Secure: true, SameSite: "strict"}

	rec := httptest.NewRecorder()
	SetAuthCookie(rec, opts, "tok", time.Hour)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, AuthCookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, "admin.example.org", c.Domain)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	rec = httptest.NewRecorder()
	ClearAuthCookie(rec, opts)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "", extractDomain("http://localhost:3000"))
	assert.Equal(t, "", extractDomain("http://127.0.0.1:3000"))
	assert.Equal(t, "", extractDomain("not a url"))
	assert.Equal(t, "example.org", extractDomain("https://example.org"))
}

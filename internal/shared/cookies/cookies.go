package cookies

import (
	"net"
	"net/http"
	"net/url"
	"time"
)

// AuthCookieName is the cookie the admin guard reads when no bearer header
// is present.
const AuthCookieName = "auth_token"

type Options struct {
	// FrontendURL sets the cookie domain. Local hosts get a host-only cookie.
	FrontendURL string
	Secure      bool
	SameSite    string
}

func SetAuthCookie(w http.ResponseWriter, opts Options, token string, ttl time.Duration) {
	cookie := createAuthCookie(opts)
	cookie.Value = token
	cookie.MaxAge = int(ttl.Seconds())

	http.SetCookie(w, cookie)
}

func ClearAuthCookie(w http.ResponseWriter, opts Options) {
	cookie := createAuthCookie(opts)
	cookie.Value = ""
	cookie.MaxAge = -1

	http.SetCookie(w, cookie)
}

func createAuthCookie(opts Options) *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Path:     "/",
		Domain:   extractDomain(opts.FrontendURL),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: parseSameSite(opts.SameSite),
	}
}

func extractDomain(frontendURL string) string {
	parsedURL, err := url.Parse(frontendURL)
	if err != nil || parsedURL.Host == "" {
		return ""
	}

	host := parsedURL.Hostname()
	if host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}
	return host
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

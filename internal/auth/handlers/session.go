package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"locations-server/internal/auth"
	"locations-server/internal/middleware"
	"locations-server/internal/shared/cookies"
	"locations-server/internal/shared/errors"
	"locations-server/internal/shared/response"
)

type SessionResponse struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionHandler moves a bearer token into the auth cookie so a browser
// admin console can call the admin endpoints, and clears it again.
type SessionHandler struct {
	cookies cookies.Options
	ttl     time.Duration
}

func NewSessionHandler(opts cookies.Options, ttl time.Duration) *SessionHandler {
	return &SessionHandler{cookies: opts, ttl: ttl}
}

// Create must run behind middleware.RequireAdmin.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "create_session")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetClaimsFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	token, err := auth.GenerateJWT(claims.Subject, claims.Role, h.ttl)
	if err != nil {
		response.ErrorWithMessage(w, r, logger, errors.WrapInternal("failed to issue session token", err), "failed to create session")
		return
	}

	cookies.SetAuthCookie(w, h.cookies, token, h.ttl)
	logger.Info("Admin session created", "subject", claims.Subject)

	response.Success(w, http.StatusOK, SessionResponse{
		Subject:   claims.Subject,
		Role:      claims.Role,
		ExpiresAt: time.Now().Add(h.ttl).UTC(),
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "delete_session")

	if r.Method != http.MethodDelete {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	cookies.ClearAuthCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

package response

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"locations-server/internal/shared/errors"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// detailer is implemented by errors that carry machine readable context,
// such as the offending line of a rejected upload.
type detailer interface {
	Details() map[string]any
}

// Error logs err and writes it as a JSON error body. Handlers do not log
// errors themselves.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	write(w, r, logger, err, err.Error())
}

// ErrorWithMessage is Error with the client facing message replaced.
func ErrorWithMessage(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, clientMessage string) {
	write(w, r, logger, err, clientMessage)
}

func write(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, message string) {
	errorType := errors.GetType(err)
	statusCode := StatusCode(errorType)

	logError(logger, r, err, errorType, statusCode)

	body := ErrorResponse{
		Error:   string(errorType),
		Message: message,
		Code:    statusCode,
	}
	var d detailer
	if errorType != errors.ErrorTypeInternal && stderrors.As(err, &d) {
		body.Details = d.Details()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// StatusCode maps an error type to the HTTP status sent for it.
func StatusCode(errorType errors.ErrorType) int {
	switch errorType {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrorTypeForbidden:
		return http.StatusForbidden
	case errors.ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case errors.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func logError(logger *slog.Logger, r *http.Request, err error, errorType errors.ErrorType, statusCode int) {
	logCtx := logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"error_type", errorType,
		"status_code", statusCode,
	)

	switch errorType {
	case errors.ErrorTypeValidation, errors.ErrorTypeMethodNotAllowed:
		logCtx.Debug("Rejected request", "error", err)
	case errors.ErrorTypeTooManyRequests:
		logCtx.Warn("Rate limit exceeded", "error", err)
	case errors.ErrorTypeUnauthorized, errors.ErrorTypeForbidden:
		logCtx.Warn("Authorization error", "error", err)
	default:
		logCtx.Error("Internal server error", "error", err)
	}
}

// NotModified answers a conditional request whose cached copy is still valid.
func NotModified(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotModified)
}

// Success writes data as JSON with the given status. A nil data writes no body.
func Success(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coursehub/apiserver/internal/services"
)

type contextKey string

const contextAuthUserKey contextKey = "auth_user"

// AuthUser is the identity attached to the request context by the
// access-guard middleware.
type AuthUser struct {
	ID   string
	Role string
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func authUserFromContext(ctx context.Context) (AuthUser, error) {
	user, ok := ctx.Value(contextAuthUserKey).(AuthUser)
	if !ok || user.ID == "" {
		return AuthUser{}, errors.New("missing authenticated user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrAccountLocked):
		writeError(w, http.StatusLocked, "account locked")
	case errors.Is(err, services.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, services.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	case errors.Is(err, services.ErrNotificationFailed):
		writeError(w, http.StatusBadGateway, "notification delivery failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// AccessTokenCookie is the cookie the access token travels in. The
// Authorization header is accepted as a fallback for non-browser clients.
const AccessTokenCookie = "accessToken"

// contextKey is an unexported type for context keys defined in this package.
type contextKey string

const userKey contextKey = "user"

// AccessVerifier is the slice of the token service the middleware needs.
type AccessVerifier interface {
	VerifyAccess(token string) (string, error)
}

// RequireAuth gates protected routes. It extracts the bearer credential from
// the accessToken cookie or the Authorization header, verifies it, loads the
// referenced user with credential fields stripped, and attaches the copy to
// the request context. Any failure ends the request with 401 before the
// wrapped handler runs.
func RequireAuth(tokens AccessVerifier, store CredentialStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			raw, ok := bearerToken(r)
			if !ok {
				logger.Warn("request missing credential", "path", r.URL.Path)
				writeUnauthorized(w)
				return
			}

			userID, err := tokens.VerifyAccess(raw)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				writeUnauthorized(w)
				return
			}

			user, err := store.FindByID(ctx, userID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					logger.Warn("access token subject unknown", "userId", userID)
				} else {
					logger.Error("load user for auth", "error", err, "userId", userID)
				}
				writeUnauthorized(w)
				return
			}

			ctx = context.WithValue(ctx, userKey, user.Sanitized())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user attached by RequireAuth.
// The second return is false on unauthenticated requests.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok && user.ID != ""
}

func bearerToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}

	return "", false
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(struct {
		StatusCode int      `json:"statusCode"`
		Message    string   `json:"message"`
		Success    bool     `json:"success"`
		Errors     []string `json:"errors"`
	}{
		StatusCode: http.StatusUnauthorized,
		Message:    "unauthorized request",
		Success:    false,
		Errors:     []string{},
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fkhayef/meetup/pkg/response"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the context key for the calling user ID
	UserIDKey ContextKey = "user_id"
)

// Header names carrying the caller identity. Identity comes from an
// upstream gateway; X-Test-User-ID is accepted for local testing.
const (
	UserIDHeader     = "X-User-ID"
	TestUserIDHeader = "X-Test-User-ID"
)

// UserMiddleware reads the caller's user id from the request headers and
// rejects requests that carry none.
func UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			userID = strings.TrimSpace(r.Header.Get(TestUserIDHeader))
		}
		if userID == "" {
			response.Unauthorized(w, "X-User-ID header required")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the user ID from the request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

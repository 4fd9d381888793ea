// Package middleware provides HTTP middlewares for session authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "session_id"

type ctxKey string

const userKey ctxKey = "user"

// SessionResolver maps a session token to its owner.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (string, bool, error)
}

// LoadSession resolves the session cookie, if any, and stores the owning
// username in the request context. Requests without a valid session pass
// through unchanged; RequireSession rejects them where needed.
func LoadSession(resolver SessionResolver, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, ok, err := resolver.ResolveSession(r.Context(), c.Value)
			if err != nil {
				log.Error("resolve session", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
				return
			}
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireSession answers 401 AUTH_REQUIRED unless LoadSession found a user.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserIDFromContext(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

// GetUserIDFromContext extracts the authenticated username from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"status":  status,
		"message": message,
	})
}

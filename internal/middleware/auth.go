package middleware

import (
	"context"
	"net/http"
	"strings"

	"admindash/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const sessionContextKey = contextKey("session")

// Session is the authenticated caller. Token is the raw bearer token, forwarded to
// functions that re-check it.
type Session struct {
	UserID string
	Email  string
	Token  string
}

// SessionFromContext returns the session stored by AuthMiddleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func AuthMiddleware(jwtSecret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			tokenString, ok := BearerToken(authHeader)
			if !ok {
				logger.Warn().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(tokenString, jwtSecret)
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			ctx := WithSession(r.Context(), Session{
				UserID: claims.Subject,
				Email:  claims.Email,
				Token:  tokenString,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleChecker reports whether a user holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(roles RoleChecker, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			isAdmin, err := roles.IsAdmin(r.Context(), session.UserID)
			if err != nil {
				logger.Error().Err(err).Str("userID", session.UserID).Msg("Failed to check admin role")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !isAdmin {
				logger.Warn().Str("userID", session.UserID).Msg("Non-admin attempted admin route")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

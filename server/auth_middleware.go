package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-sso-client/claims"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the verified caller identity
	ContextKeyUser ContextKey = "user"
	// ContextKeyToken stores the raw bearer token the caller presented
	ContextKeyToken ContextKey = "token"
)

// UserFromContext returns the verified caller identity injected by
// RequireAuth.
func UserFromContext(ctx context.Context) (*claims.View, bool) {
	view, ok := ctx.Value(ContextKeyUser).(*claims.View)
	return view, ok
}

// TokenFromContext returns the raw bearer token injected by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ContextKeyToken).(string)
	return token, ok
}

// RequireAuth is middleware that fully verifies a Bearer access token
// (signature, issuer, audience, lifetime) and injects the caller identity
// into the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}

			token := parts[1]
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Empty token")
				return
			}

			view, err := s.verifier.ValidateToken(token)
			if err != nil {
				s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token rejected")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, view)
			ctx = context.WithValue(ctx, ContextKeyToken, token)
			r = r.WithContext(ctx)

			next(w, r)
		}
	}
}

// RequirePermissions is middleware that checks the verified caller holds at
// least one of the given roles. Should be chained after RequireAuth.
func (s *Server) RequirePermissions(permissions ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			view, ok := UserFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "No verified identity")
				return
			}
			if !claims.HasPermissions(*view, permissions) {
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-token-service/internal/errors"
	"github.com/jrsteele09/go-token-service/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
)

// UserIDFromContext returns the user authenticated by RequireAuth
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}

// ClaimsFromContext returns the token claims stored by RequireAuth. Claims are
// only available when the token service is also a token.Inspector.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok && claims != nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	rawToken := strings.TrimSpace(parts[1])
	return rawToken, rawToken != ""
}

// unauthorized is the single response for every authentication failure, so
// clients cannot tell an expired token from a forged one.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, "unauthorized", http.StatusUnauthorized)
}

func forbidden(w http.ResponseWriter) {
	writeJSONError(w, "forbidden", http.StatusForbidden)
}

// RequireAuth is middleware that validates a Bearer access token
// Used for API routes that expect tokens in the Authorization header
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				s.logger.Debug().Str("path", r.URL.Path).Msg("missing bearer token")
				unauthorized(w)
				return
			}

			ctx := r.Context()
			if inspector, ok := s.tokens.(token.Inspector); ok {
				claims, err := inspector.Inspect(rawToken)
				if err != nil {
					s.logger.Debug().Str("path", r.URL.Path).Str("reason", apperrors.Reason(err)).Msg("bearer token rejected")
					unauthorized(w)
					return
				}
				ctx = context.WithValue(ctx, ContextKeyUserID, claims.Subject)
				ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			} else {
				userID, ok := s.tokens.ValidateAccessToken(rawToken)
				if !ok {
					unauthorized(w)
					return
				}
				ctx = context.WithValue(ctx, ContextKeyUserID, userID)
			}

			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole is middleware that requires every listed role
// Should be chained after RequireAuth to ensure claims are present
func (s *Server) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return s.requireClaims(func(c *token.Claims) bool { return c.HasRoles(roles...) })
}

// RequirePermission is middleware that requires every listed permission
// Should be chained after RequireAuth to ensure claims are present
func (s *Server) RequirePermission(permissions ...string) func(http.HandlerFunc) http.HandlerFunc {
	return s.requireClaims(func(c *token.Claims) bool { return c.HasPermissions(permissions...) })
}

func (s *Server) requireClaims(allowed func(*token.Claims) bool) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !allowed(claims) {
				forbidden(w)
				return
			}
			next(w, r)
		}
	}
}

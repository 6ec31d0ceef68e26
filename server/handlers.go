package server

import (
	"encoding/json"
	"net/http"
)

// MeResponse describes the authenticated user. A client re-reads it after a
// page reload instead of trusting what it stored locally.
type MeResponse struct {
	UserID      string   `json:"user_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	ExpiresAt   int64    `json:"expires_at,omitempty"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.keySet == nil {
			writeJSONError(w, "not_found", http.StatusNotFound)
			return
		}
		jwks, err := s.keySet.JWKS()
		if err != nil {
			s.logger.Debug().Err(err).Msg("no public keys to publish")
			writeJSONError(w, "not_found", http.StatusNotFound)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
		writeJSON(w, jwks, http.StatusOK)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		resp := MeResponse{UserID: userID, Roles: []string{}, Permissions: []string{}}
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			if claims.Roles != nil {
				resp.Roles = claims.Roles
			}
			if claims.Permissions != nil {
				resp.Permissions = claims.Permissions
			}
			if claims.ExpiresAt != nil {
				resp.ExpiresAt = claims.ExpiresAt.Unix()
			}
		}
		writeJSON(w, resp, http.StatusOK)
	}
}

// LogoutHandler revokes the caller's refresh tokens. The access token stays
// valid until it expires.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w)
			return
		}

		if s.refreshTokens != nil {
			n, err := s.refreshTokens.DeleteForUser(userID)
			if err != nil {
				s.logger.Err(err).Str("user_id", userID).Msg("failed to revoke refresh tokens")
				writeJSONError(w, "internal_error", http.StatusInternalServerError)
				return
			}
			s.logger.Info().Str("user_id", userID).Int("revoked", n).Msg("refresh tokens revoked")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode string, statusCode int) {
	writeJSON(w, map[string]string{"error": errorCode}, statusCode)
}

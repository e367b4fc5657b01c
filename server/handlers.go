package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-sso-client/claims"
)

// MeHandler returns the verified caller's identity.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := UserFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "No verified identity")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// PermissionsRequest is the body of a permission check.
type PermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// PermissionsResponse reports the outcome of a permission check.
type PermissionsResponse struct {
	Granted bool     `json:"granted"`
	Roles   []string `json:"roles"`
}

// PermissionsHandler checks whether the caller holds any of the requested
// roles. An empty request grants by definition.
func (s *Server) PermissionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := UserFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "No verified identity")
			return
		}

		var req PermissionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
			return
		}

		writeJSON(w, http.StatusOK, PermissionsResponse{
			Granted: claims.HasPermissions(*view, req.Permissions),
			Roles:   view.Roles,
		})
	}
}

// AuthStatusHandler returns a diagnostic projection of the presented token.
func (s *Server) AuthStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "No verified identity")
			return
		}
		info, err := s.verifier.Info(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// PublicInfoHandler is reachable without a credential.
func (s *Server) PublicInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app": s.config.GetAppName(),
			"env": s.env,
		})
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

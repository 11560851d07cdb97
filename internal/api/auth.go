package api

import (
	"errors"
	"net/http"

	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/auth"
)

// loginRequest is the request body for POST /auth.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth.
type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin authenticates a user and returns a JWT access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("login failed", "username", req.Username)
		}
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionLogin, audit.EntityUser, req.Username, nil)
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

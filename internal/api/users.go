package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/auth"
)

type createUserRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityUser, user.Username, map[string]any{"role": user.Role})
	s.logger.Info("user created", "username", user.Username, "role", user.Role,
		"by", claimsFromContext(r.Context()).Username)
	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns one account.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes an account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if err := s.auth.DeleteUser(r.Context(), username); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, audit.EntityUser, username, nil)
	w.WriteHeader(http.StatusNoContent)
}

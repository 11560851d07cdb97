package api

import (
	"net/http"
	"strconv"

	"github.com/geocontrol/geocontrol-core/internal/audit"
)

// auditLog queues a trail entry attributed to the authenticated caller, if any.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	var userID string
	if claims := claimsFromContext(r.Context()); claims != nil {
		userID = claims.Subject
	}
	s.audit.Record(audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     "api",
		Details:    details,
	})
}

// handleListAudit returns the audit trail, newest first.
//
// Query parameters: action, entityType, entityId, limit (default 50, max 200), offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLogs == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, name+" must be an integer")
			return
		}
		*dst = n
	}

	page, err := s.auditLogs.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

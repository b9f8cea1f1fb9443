package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/audit"
)

// handleListAudit returns paginated registration history with optional filters.
//
// Query parameters:
//   - event: registered, updated or deregistered
//   - endpoint: exact endpoint name
//   - location: exact location handle
//   - since: RFC 3339 timestamp
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Event:    q.Get("event"),
		Endpoint: q.Get("endpoint"),
		Location: q.Get("location"),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list registration history", "error", err)
		writeInternalError(w, "failed to list registration history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// clientListResponse is the body of GET /clients.
type clientListResponse struct {
	Clients []registration.Client `json:"clients"`
	Count   int                   `json:"count"`
}

// handleListClients returns every live registration ordered by endpoint.
//
// Query parameters:
//   - binding: only clients with this binding mode (U, UQ, S, SQ, US, UQS)
//   - queued: "true" for queue-mode clients only
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var binding registration.Binding
	if v := q.Get("binding"); v != "" {
		b, err := registration.ParseBinding(v)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		binding = b
	}
	queuedOnly := q.Get("queued") == "true"

	all := s.registry.List()
	clients := make([]registration.Client, 0, len(all))
	for _, c := range all {
		if binding != "" && c.Binding != binding {
			continue
		}
		if queuedOnly && !c.Binding.Queued() {
			continue
		}
		clients = append(clients, c)
	}

	writeJSON(w, http.StatusOK, clientListResponse{Clients: clients, Count: len(clients)})
}

// handleGetClient returns the registration at a location handle.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.registry.Lookup(chi.URLParam(r, "location"))
	s.writeClient(w, client, err)
}

// handleGetEndpoint returns the registration of an endpoint name.
func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	client, err := s.registry.LookupEndpoint(chi.URLParam(r, "endpoint"))
	s.writeClient(w, client, err)
}

func (s *Server) writeClient(w http.ResponseWriter, client *registration.Client, err error) {
	switch {
	case errors.Is(err, registration.ErrNotFound):
		writeNotFound(w, "client not registered")
	case err != nil:
		s.logger.Error("registry lookup failed", "error", err)
		writeInternalError(w, "registry lookup failed")
	default:
		writeJSON(w, http.StatusOK, client)
	}
}

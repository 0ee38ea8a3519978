package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planforge/planforge/pkg/cerr"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/analytics/agents", s.handleAgents)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := s.service.Snapshot(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, snap)
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/pkg/cerr"
)

// ProjectSummary is the expanded view of an assigned project.
type ProjectSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// TaskSummary is the expanded view of an assigned task.
type TaskSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Directory resolves assigned project/task ids into display summaries for
// the expanded agent view. The caller wires it to the project and task
// repositories.
type Directory interface {
	ProjectSummaries(ctx context.Context, ids []string) []ProjectSummary
	TaskSummaries(ctx context.Context, ids []string) []TaskSummary
}

type Server struct {
	repo      Repository
	directory Directory
	eventBus  *eventbus.Bus
}

func NewServer(repo Repository, directory Directory, eventBus *eventbus.Bus) *Server {
	return &Server{repo: repo, directory: directory, eventBus: eventBus}
}

type createRequest struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Type          Type         `json:"type"`
	Capabilities  []string     `json:"capabilities"`
	Configuration *configPatch `json:"configuration"`
}

// configPatch carries optional configuration fields for create and update.
// Pointers distinguish "absent" from zero values so updates deep-merge.
type configPatch struct {
	MaxConcurrentTasks *int          `json:"maxConcurrentTasks"`
	WorkingHours       *workingHours `json:"workingHours"`
	AutoAcceptTasks    *bool         `json:"autoAcceptTasks"`
	PriorityThreshold  *Priority     `json:"priorityThreshold"`
	Skills             *[]string     `json:"skills"`
	Model              *string       `json:"model"`
	Instructions       *string       `json:"instructions"`
}

type workingHours struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

func (p *configPatch) applyTo(cfg *Configuration) {
	if p == nil {
		return
	}
	if p.MaxConcurrentTasks != nil {
		cfg.MaxConcurrentTasks = *p.MaxConcurrentTasks
	}
	if p.WorkingHours != nil {
		if p.WorkingHours.Start != nil {
			cfg.WorkingHours.Start = *p.WorkingHours.Start
		}
		if p.WorkingHours.End != nil {
			cfg.WorkingHours.End = *p.WorkingHours.End
		}
	}
	if p.AutoAcceptTasks != nil {
		cfg.AutoAcceptTasks = *p.AutoAcceptTasks
	}
	if p.PriorityThreshold != nil {
		cfg.PriorityThreshold = *p.PriorityThreshold
	}
	if p.Skills != nil {
		cfg.Skills = *p.Skills
	}
	if p.Model != nil {
		cfg.Model = *p.Model
	}
	if p.Instructions != nil {
		cfg.Instructions = *p.Instructions
	}
}

func validateConfiguration(cfg *Configuration) error {
	if cfg.MaxConcurrentTasks < 1 || cfg.MaxConcurrentTasks > 10 {
		return cerr.NewError(cerr.InvalidArgument, "maxConcurrentTasks must be between 1 and 10", nil)
	}
	for _, hhmm := range []string{cfg.WorkingHours.Start, cfg.WorkingHours.End} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid working hours value %q, expected HH:MM", hhmm), nil)
		}
	}
	return nil
}

type updateRequest struct {
	Name          *string      `json:"name"`
	Description   *string      `json:"description"`
	Type          *Type        `json:"type"`
	Status        *Status      `json:"status"`
	Capabilities  *[]string    `json:"capabilities"`
	Configuration *configPatch `json:"configuration"`
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/agents", s.handleCreate)
	r.Get("/agents", s.handleList)
	r.Get("/agents/{id}", s.handleGet)
	r.Put("/agents/{id}", s.handleUpdate)
	r.Delete("/agents/{id}", s.handleDelete)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Name == "" || req.Type == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name and type are required", nil)
		return
	}
	if !req.Type.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown agent type %q", req.Type), nil)
		return
	}

	now := time.Now()
	cfg := DefaultConfiguration()
	req.Configuration.applyTo(&cfg)
	if err := validateConfiguration(&cfg); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	capabilities := req.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}

	a := &Agent{
		ID:               ulid.Make().String(),
		Name:             req.Name,
		Description:      req.Description,
		Type:             req.Type,
		Status:           StatusIdle,
		Capabilities:     capabilities,
		AssignedProjects: []string{},
		AssignedTasks:    []string{},
		Configuration:    cfg,
		Performance:      DefaultPerformance(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventAgentCreated, a.ID, "", map[string]string{"name": a.Name, "type": string(a.Type)})

	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, map[string]any{"agent": a})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)
	agents, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if agents == nil {
		agents = []*Agent{}
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"agents": agents,
		"total":  total,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	resp := map[string]any{"agent": a}
	if s.directory != nil {
		resp["assignedProjects"] = s.directory.ProjectSummaries(ctx, a.AssignedProjects)
		resp["assignedTasks"] = s.directory.TaskSummaries(ctx, a.AssignedTasks)
	}
	cerr.SetJSONResponse(ctx, resp)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown agent type %q", *req.Type), nil)
			return
		}
		a.Type = *req.Type
	}
	if req.Status != nil {
		// Explicit activate/deactivate path. The workflow engine owns the
		// busy/idle transitions during command processing.
		if !req.Status.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown agent status %q", *req.Status), nil)
			return
		}
		a.Status = *req.Status
	}
	if req.Capabilities != nil {
		a.Capabilities = *req.Capabilities
	}
	req.Configuration.applyTo(&a.Configuration)
	if err := validateConfiguration(&a.Configuration); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	a.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, a); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventAgentUpdated, a.ID, "", nil)

	cerr.SetJSONResponse(ctx, map[string]any{"agent": a})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	// Tasks referencing this agent keep their assignee; readers tolerate it.
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventAgentDeleted, id, "", nil)

	cerr.SetJSONResponse(ctx, map[string]any{"message": "agent deleted"})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		fmt.Sscanf(v, "%d", &offset)
	}
	return limit, offset
}

package task

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/internal/plan"
	"github.com/planforge/planforge/pkg/cerr"
)

type Server struct {
	repo     Repository
	planRepo plan.Repository
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, planRepo plan.Repository, eventBus *eventbus.Bus) *Server {
	return &Server{repo: repo, planRepo: planRepo, eventBus: eventBus}
}

type createRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	PlanID         string     `json:"planId"`
	Assignee       string     `json:"assignee"`
	DueDate        *time.Time `json:"dueDate"`
	EstimatedHours float64    `json:"estimatedHours"`
	Tags           []string   `json:"tags"`
	Dependencies   []string   `json:"dependencies"`
	MilestoneID    string     `json:"milestoneId"`
}

type updateRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *Status    `json:"status"`
	Priority       *Priority  `json:"priority"`
	Assignee       *string    `json:"assignee"`
	DueDate        *time.Time `json:"dueDate"`
	EstimatedHours *float64   `json:"estimatedHours"`
	ActualHours    *float64   `json:"actualHours"`
	Tags           *[]string  `json:"tags"`
	MilestoneID    *string    `json:"milestoneId"`
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/tasks", s.handleCreate)
	r.Get("/tasks", s.handleList)
	r.Get("/tasks/{id}", s.handleGet)
	r.Put("/tasks/{id}", s.handleUpdate)
	r.Delete("/tasks/{id}", s.handleDelete)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Title == "" || req.PlanID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title and planId are required", nil)
		return
	}
	if _, err := s.planRepo.Get(ctx, req.PlanID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", priority), nil)
		return
	}

	now := time.Now()
	t := &Task{
		ID:             ulid.Make().String(),
		Title:          req.Title,
		Description:    req.Description,
		Status:         StatusTodo,
		Priority:       priority,
		PlanID:         req.PlanID,
		Dependencies:   req.Dependencies,
		Assignee:       req.Assignee,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
		MilestoneID:    req.MilestoneID,
		Workflow: AgentWorkflow{
			ProgressUpdates: []ProgressUpdate{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskCreated, t.ID, "", map[string]string{"plan_id": t.PlanID})

	cerr.SetJSONResponseStatus(ctx, http.StatusCreated, map[string]any{"task": t})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := Filter{
		PlanID:        q.Get("planId"),
		Status:        Status(q.Get("status")),
		AgentAssigned: q.Get("agentAssigned") == "true",
	}
	limit, offset := pagination(r)
	tasks, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []*Task{}
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"task": t})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Status != nil {
		// Plain status edits don't touch the agent workflow sub-record;
		// only the workflow engine mutates that.
		if !req.Status.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", *req.Status), nil)
			return
		}
		t.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", *req.Priority), nil)
			return
		}
		t.Priority = *req.Priority
	}
	if req.Assignee != nil {
		t.Assignee = *req.Assignee
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.MilestoneID != nil {
		t.MilestoneID = *req.MilestoneID
	}
	t.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskUpdated, t.ID, "", map[string]string{"plan_id": t.PlanID})

	cerr.SetJSONResponse(ctx, map[string]any{"task": t})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.EventTaskDeleted, id, "", map[string]string{"plan_id": t.PlanID})

	cerr.SetJSONResponse(ctx, map[string]any{"message": "task deleted"})
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

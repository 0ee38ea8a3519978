package workflow

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/planforge/planforge/internal/task"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/metrics"
)

type Server struct {
	engine  *Engine
	metrics *metrics.Registry
}

func NewServer(engine *Engine, reg *metrics.Registry) *Server {
	return &Server{engine: engine, metrics: reg}
}

// commandRequest is the single dispatch envelope for all workflow actions.
type commandRequest struct {
	Action    string `json:"action"`
	TaskID    string `json:"taskId"`
	AgentID   string `json:"agentId"`
	ProjectID string `json:"projectId"`
	Progress  *int   `json:"progress"`
	Note      string `json:"note"`
	Reason    string `json:"reason"`
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/workflow", s.handleCommand)
	r.Get("/workflow", s.handleStatus)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.AgentID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "agentId is required", nil)
		return
	}

	var (
		res *Result
		err error
	)
	switch req.Action {
	case "assign-task":
		if req.TaskID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId is required", nil)
			return
		}
		res, err = s.engine.AssignTask(ctx, req.AgentID, req.TaskID)
	case "unassign-task":
		if req.TaskID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId is required", nil)
			return
		}
		res, err = s.engine.UnassignTask(ctx, req.AgentID, req.TaskID)
	case "assign-project":
		if req.ProjectID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "projectId is required", nil)
			return
		}
		res, err = s.engine.AssignProject(ctx, req.AgentID, req.ProjectID)
	case "unassign-project":
		if req.ProjectID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "projectId is required", nil)
			return
		}
		res, err = s.engine.UnassignProject(ctx, req.AgentID, req.ProjectID)
	case "start-work":
		if req.TaskID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId is required", nil)
			return
		}
		res, err = s.engine.StartWork(ctx, req.TaskID, req.AgentID)
	case "update-progress":
		if req.TaskID == "" || req.Progress == nil {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId and progress are required", nil)
			return
		}
		res, err = s.engine.UpdateProgress(ctx, req.TaskID, req.AgentID, *req.Progress, req.Note)
	case "complete-task":
		if req.TaskID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId is required", nil)
			return
		}
		res, err = s.engine.CompleteTask(ctx, req.TaskID, req.AgentID)
	case "pause-task":
		if req.TaskID == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "taskId is required", nil)
			return
		}
		res, err = s.engine.PauseTask(ctx, req.TaskID, req.AgentID, req.Reason)
	default:
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown action "+req.Action, nil)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveCommand(req.Action, err)
		if err == nil && res.Task != nil && res.Task.Status == task.StatusCompleted {
			s.metrics.TasksCompleted.Inc()
		}
	}
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"success": true,
		"task":    res.Task,
		"agent":   res.Agent,
	})
}

// workflowView is the list entry returned by GET /workflow.
type workflowView struct {
	Task  *task.Task `json:"task"`
	Agent string     `json:"agentId"`
}

// handleStatus returns active workflows. With ?agentId= it returns the
// agent plus its tasks, most recently active first; without it, every
// task currently held by an agent.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agentID := r.URL.Query().Get("agentId")

	if agentID != "" {
		a, err := s.engine.agents.Get(ctx, agentID)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		tasks := make([]*task.Task, 0, len(a.AssignedTasks))
		for _, id := range a.AssignedTasks {
			t, err := s.engine.tasks.Get(ctx, id)
			if err != nil {
				if cerr.IsCode(err, cerr.NotFound) {
					continue
				}
				cerr.SetJSONError(ctx, err)
				return
			}
			tasks = append(tasks, t)
		}
		sortByActivity(tasks)
		cerr.SetJSONResponse(ctx, map[string]any{
			"agent": a,
			"tasks": tasks,
		})
		return
	}

	tasks, _, err := s.engine.tasks.List(ctx, task.Filter{AgentAssigned: true}, 0, 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	sortByActivity(tasks)
	views := make([]workflowView, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != task.StatusTodo && t.Status != task.StatusInProgress {
			continue
		}
		views = append(views, workflowView{Task: t, Agent: *t.AgentAssignee})
	}
	cerr.SetJSONResponse(ctx, map[string]any{"workflows": views})
}

func sortByActivity(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		li, lj := tasks[i].Workflow.LastActivityAt, tasks[j].Workflow.LastActivityAt
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.After(*lj)
		}
	})
}

package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/task"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/metrics"
)

func newTestRouter(t *testing.T, f *fixture) chi.Router {
	t.Helper()
	srv := NewServer(f.engine, metrics.NewRegistry())
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	srv.RegisterRoutes(r)
	return r
}

func postCommand(t *testing.T, r chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workflow", strings.NewReader(body)))
	return rec
}

func TestCommandDispatch(t *testing.T) {
	f := newFixture(t, 30)
	r := newTestRouter(t, f)

	rec := postCommand(t, r, `{"action":"assign-task","taskId":"task-1","agentId":"agent-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool       `json:"success"`
		Task    *task.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Task)
	assert.Equal(t, "agent-1", *resp.Task.AgentAssignee)

	rec = postCommand(t, r, `{"action":"start-work","taskId":"task-1","agentId":"agent-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.Task.Workflow.ProgressPercentage)
}

func TestCommandValidation(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown action", `{"action":"explode","agentId":"agent-1"}`, http.StatusBadRequest},
		{"missing agent", `{"action":"assign-task","taskId":"task-1"}`, http.StatusBadRequest},
		{"missing task", `{"action":"assign-task","agentId":"agent-1"}`, http.StatusBadRequest},
		{"missing progress", `{"action":"update-progress","taskId":"task-1","agentId":"agent-1"}`, http.StatusBadRequest},
		{"missing project", `{"action":"assign-project","agentId":"agent-1"}`, http.StatusBadRequest},
		{"malformed body", `{`, http.StatusBadRequest},
		{"unknown task id", `{"action":"assign-task","taskId":"ghost","agentId":"agent-1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postCommand(t, r, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStatusByAgent(t *testing.T) {
	f := newFixture(t, 20)
	r := newTestRouter(t, f)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workflow?agentId=agent-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Agent struct {
			ID string `json:"id"`
		} `json:"agent"`
		Tasks []*task.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "agent-1", resp.Agent.ID)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "task-1", resp.Tasks[0].ID)
}

func TestStatusListsActiveWorkflows(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f)
	ctx := context.Background()

	// task-1 assigned, task-2 left unassigned.
	tk := &task.Task{
		ID:        "task-2",
		Title:     "Spare task",
		Status:    task.StatusTodo,
		Priority:  task.PriorityLow,
		PlanID:    "plan-1",
		CreatedAt: f.clock.now,
		UpdatedAt: f.clock.now,
	}
	require.NoError(t, f.tasks.Create(ctx, tk))
	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workflow", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Workflows []struct {
			Task  *task.Task `json:"task"`
			Agent string     `json:"agentId"`
		} `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Workflows, 1)
	assert.Equal(t, "task-1", resp.Workflows[0].Task.ID)
	assert.Equal(t, "agent-1", resp.Workflows[0].Agent)
}

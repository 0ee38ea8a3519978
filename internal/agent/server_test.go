package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/agent"
	agentrepo "github.com/planforge/planforge/internal/agent/repositoryimpl"
	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/storage"
)

type stubDirectory struct{}

func (stubDirectory) ProjectSummaries(_ context.Context, ids []string) []agent.ProjectSummary {
	summaries := make([]agent.ProjectSummary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, agent.ProjectSummary{ID: id, Name: "Project " + id})
	}
	return summaries
}

func (stubDirectory) TaskSummaries(_ context.Context, ids []string) []agent.TaskSummary {
	summaries := make([]agent.TaskSummary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, agent.TaskSummary{ID: id, Title: "Task " + id})
	}
	return summaries
}

func newTestServer(t *testing.T) (chi.Router, agent.Repository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := agentrepo.NewYAMLRepository(store)
	srv := agent.NewServer(repo, stubDirectory{}, eventbus.New())

	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	srv.RegisterRoutes(r)
	return r, repo
}

func TestCreateAgent(t *testing.T) {
	r, _ := newTestServer(t)

	body := `{"name":"Reviewer","type":"code-reviewer","configuration":{"maxConcurrentTasks":5}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Agent agent.Agent `json:"agent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Agent.ID)
	assert.Equal(t, "Reviewer", resp.Agent.Name)
	assert.Equal(t, agent.StatusIdle, resp.Agent.Status)
	// Patched field applied, the rest defaulted.
	assert.Equal(t, 5, resp.Agent.Configuration.MaxConcurrentTasks)
	assert.Equal(t, "09:00", resp.Agent.Configuration.WorkingHours.Start)
	assert.Equal(t, float64(100), resp.Agent.Performance.SuccessRate)
}

func TestCreateAgentValidation(t *testing.T) {
	r, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"type":"testing"}`},
		{"missing type", `{"name":"x"}`},
		{"unknown type", `{"name":"x","type":"wizard"}`},
		{"malformed body", `{`},
		{"concurrency out of bounds", `{"name":"x","type":"testing","configuration":{"maxConcurrentTasks":20}}`},
		{"bad working hours", `{"name":"x","type":"testing","configuration":{"workingHours":{"start":"9am"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agents", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetAgentExpandsAssignments(t *testing.T) {
	r, repo := newTestServer(t)
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &agent.Agent{
		ID:               "agent-1",
		Name:             "Executor",
		Type:             agent.TypeTaskExecutor,
		Status:           agent.StatusIdle,
		AssignedProjects: []string{"p1"},
		AssignedTasks:    []string{"t1", "t2"},
		Performance:      agent.DefaultPerformance(now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents/agent-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Agent            agent.Agent            `json:"agent"`
		AssignedProjects []agent.ProjectSummary `json:"assignedProjects"`
		AssignedTasks    []agent.TaskSummary    `json:"assignedTasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.AssignedProjects, 1)
	assert.Len(t, resp.AssignedTasks, 2)
}

func TestGetAgentNotFound(t *testing.T) {
	r, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAgentMergesConfiguration(t *testing.T) {
	r, repo := newTestServer(t)
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &agent.Agent{
		ID:            "agent-1",
		Name:          "Executor",
		Type:          agent.TypeTaskExecutor,
		Status:        agent.StatusIdle,
		Configuration: agent.DefaultConfiguration(),
		Performance:   agent.DefaultPerformance(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	body := `{"status":"offline","configuration":{"workingHours":{"end":"18:00"}}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/agents/agent-1", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	got, err := repo.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusOffline, got.Status)
	assert.Equal(t, "18:00", got.Configuration.WorkingHours.End)
	// Untouched configuration fields survive the merge.
	assert.Equal(t, "09:00", got.Configuration.WorkingHours.Start)
	assert.Equal(t, 3, got.Configuration.MaxConcurrentTasks)
}

func TestDeleteAgent(t *testing.T) {
	r, repo := newTestServer(t)
	now := time.Now()
	require.NoError(t, repo.Create(context.Background(), &agent.Agent{
		ID:          "agent-1",
		Name:        "Executor",
		Type:        agent.TypeTaskExecutor,
		Status:      agent.StatusIdle,
		Performance: agent.DefaultPerformance(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/agents/agent-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := repo.Get(context.Background(), "agent-1")
	require.Error(t, err)
}

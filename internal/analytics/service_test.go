package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/agent"
	agentrepo "github.com/planforge/planforge/internal/agent/repositoryimpl"
	"github.com/planforge/planforge/internal/task"
	taskrepo "github.com/planforge/planforge/internal/task/repositoryimpl"
	"github.com/planforge/planforge/pkg/storage"
)

func newService(t *testing.T, ttl time.Duration) (*Service, agent.Repository, task.Repository) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	agents := agentrepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	return NewService(agents, tasks, ttl), agents, tasks
}

func seedAgent(t *testing.T, repo agent.Repository, id string, status agent.Status, completed int, hours, efficiency float64, assigned ...string) {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	perf := agent.DefaultPerformance(now)
	perf.TasksCompleted = completed
	perf.TotalHoursWorked = hours
	perf.EfficiencyScore = efficiency
	if assigned == nil {
		assigned = []string{}
	}
	require.NoError(t, repo.Create(context.Background(), &agent.Agent{
		ID:            id,
		Name:          "Agent " + id,
		Type:          agent.TypeTaskExecutor,
		Status:        status,
		AssignedTasks: assigned,
		Performance:   perf,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func seedTask(t *testing.T, repo task.Repository, id string, status task.Status, agentID string) {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tk := &task.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  task.PriorityMedium,
		PlanID:    "plan-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if agentID != "" {
		tk.AgentAssignee = &agentID
	}
	require.NoError(t, repo.Create(context.Background(), tk))
}

func TestSnapshotFold(t *testing.T) {
	svc, agents, tasks := newService(t, time.Minute)
	ctx := context.Background()

	seedAgent(t, agents, "a1", agent.StatusBusy, 3, 12, 90, "t1")
	seedAgent(t, agents, "a2", agent.StatusIdle, 1, 2, 70)
	seedAgent(t, agents, "a3", agent.StatusOffline, 0, 0, 80)

	seedTask(t, tasks, "t1", task.StatusInProgress, "a1")
	seedTask(t, tasks, "t2", task.StatusCompleted, "a2")
	seedTask(t, tasks, "t3", task.StatusCompleted, "")
	seedTask(t, tasks, "t4", task.StatusTodo, "")

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.TotalAgents)
	assert.Equal(t, 2, snap.ActiveAgents)
	assert.Equal(t, 4, snap.TotalTasks)
	assert.Equal(t, 2, snap.AssignedTasks)
	assert.Equal(t, 1, snap.CompletedTasks)
	assert.Equal(t, 1, snap.InProgressTasks)
	assert.InDelta(t, 50.0, snap.CompletionRate, 1e-9)
	assert.InDelta(t, 14.0, snap.TotalHoursWorked, 1e-9)
	assert.InDelta(t, 80.0, snap.AverageEfficiency, 1e-9)
	require.Len(t, snap.AgentWorkloads, 3)

	byID := map[string]AgentWorkload{}
	for _, w := range snap.AgentWorkloads {
		byID[w.AgentID] = w
	}
	assert.Equal(t, 1, byID["a1"].CurrentTasks)
	assert.Equal(t, 3, byID["a1"].CompletedTasks)
	assert.Equal(t, agent.StatusBusy, byID["a1"].Status)
}

func TestSnapshotScopesCountsToAgentTasks(t *testing.T) {
	svc, agents, tasks := newService(t, time.Minute)
	ctx := context.Background()

	seedAgent(t, agents, "a1", agent.StatusBusy, 0, 0, 80, "t1")

	seedTask(t, tasks, "t1", task.StatusInProgress, "a1")
	seedTask(t, tasks, "t2", task.StatusCompleted, "")

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	// The human-only completed task counts toward the totals but must not
	// leak into the agent completion numbers.
	assert.Equal(t, 2, snap.TotalTasks)
	assert.Equal(t, 1, snap.AssignedTasks)
	assert.Equal(t, 0, snap.CompletedTasks)
	assert.Equal(t, 1, snap.InProgressTasks)
	assert.Zero(t, snap.CompletionRate)
}

func TestSnapshotEmpty(t *testing.T) {
	svc, _, _ := newService(t, time.Minute)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.TotalAgents)
	assert.Zero(t, snap.CompletionRate)
	assert.Zero(t, snap.AverageEfficiency)
	assert.Empty(t, snap.AgentWorkloads)
}

func TestSnapshotMemoization(t *testing.T) {
	svc, agents, _ := newService(t, time.Minute)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.TotalAgents)

	seedAgent(t, agents, "a1", agent.StatusIdle, 0, 0, 85)

	// Cached result is served until the TTL passes or a write invalidates.
	cached, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, cached.TotalAgents)

	svc.Invalidate()
	fresh, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalAgents)
}

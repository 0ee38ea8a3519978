package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge/internal/agent"
	agentrepo "github.com/planforge/planforge/internal/agent/repositoryimpl"
	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/internal/project"
	projectrepo "github.com/planforge/planforge/internal/project/repositoryimpl"
	"github.com/planforge/planforge/internal/task"
	taskrepo "github.com/planforge/planforge/internal/task/repositoryimpl"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/storage"
)

// stubSource yields a fixed cycle of increments so tests are deterministic.
type stubSource struct {
	increments []int
	i          int
}

func (s *stubSource) Increment() int {
	v := s.increments[s.i%len(s.increments)]
	s.i++
	return v
}

func (s *stubSource) Roll(n int) int {
	return n / 2
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	engine   *Engine
	agents   agent.Repository
	tasks    task.Repository
	projects project.Repository
	clock    *fakeClock
	agent    *agent.Agent
	task     *task.Task
}

func newFixture(t *testing.T, increments ...int) *fixture {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	if len(increments) == 0 {
		increments = []int{25}
	}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	agents := agentrepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	projects := projectrepo.NewYAMLRepository(store)
	bus := eventbus.New()
	engine := NewEngine(agents, tasks, projects, bus,
		WithClock(clock.Now),
		WithProgressSource(&stubSource{increments: increments}),
	)

	ctx := context.Background()
	a := &agent.Agent{
		ID:               "agent-1",
		Name:             "Executor",
		Type:             agent.TypeTaskExecutor,
		Status:           agent.StatusIdle,
		Capabilities:     []string{},
		AssignedProjects: []string{},
		AssignedTasks:    []string{},
		Configuration:    agent.DefaultConfiguration(),
		Performance:      agent.DefaultPerformance(clock.now),
		CreatedAt:        clock.now,
		UpdatedAt:        clock.now,
	}
	require.NoError(t, agents.Create(ctx, a))

	tk := &task.Task{
		ID:             "task-1",
		Title:          "Implement feature",
		Status:         task.StatusTodo,
		Priority:       task.PriorityMedium,
		PlanID:         "plan-1",
		EstimatedHours: 4,
		CreatedAt:      clock.now,
		UpdatedAt:      clock.now,
	}
	require.NoError(t, tasks.Create(ctx, tk))

	return &fixture{
		engine:   engine,
		agents:   agents,
		tasks:    tasks,
		projects: projects,
		clock:    clock,
		agent:    a,
		task:     tk,
	}
}

func TestAssignTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	assert.Equal(t, task.StatusTodo, res.Task.Status)
	assert.Equal(t, 0, res.Task.Workflow.ProgressPercentage)
	require.NotNil(t, res.Task.AgentAssignee)
	assert.Equal(t, "agent-1", *res.Task.AgentAssignee)
	assert.Contains(t, res.Agent.AssignedTasks, "task-1")
	require.Len(t, res.Task.Workflow.ProgressUpdates, 1)
	assert.Equal(t, "assigned", res.Task.Workflow.ProgressUpdates[0].Status)
	require.NotNil(t, res.Task.Workflow.AssignedAt)
}

func TestAssignTaskHeldByOtherAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &agent.Agent{
		ID:               "agent-2",
		Name:             "Reviewer",
		Type:             agent.TypeCodeReviewer,
		Status:           agent.StatusIdle,
		AssignedProjects: []string{},
		AssignedTasks:    []string{},
		Performance:      agent.DefaultPerformance(f.clock.now),
	}
	require.NoError(t, f.agents.Create(ctx, other))

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	_, err = f.engine.AssignTask(ctx, "agent-2", "task-1")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	// The failed command left both records untouched.
	tk, err := f.tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", *tk.AgentAssignee)
	a2, err := f.agents.Get(ctx, "agent-2")
	require.NoError(t, err)
	assert.Empty(t, a2.AssignedTasks)
}

func TestNotFoundLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "missing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	_, err = f.engine.StartWork(ctx, "task-1", "missing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	a, err := f.agents.Get(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, a.AssignedTasks)
	tk, err := f.tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Empty(t, tk.Workflow.ProgressUpdates)
}

func TestStartWorkUntilCompletion(t *testing.T) {
	f := newFixture(t, 25)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	var res *Result
	for i := 0; i < 4; i++ {
		f.clock.Advance(30 * time.Minute)
		res, err = f.engine.StartWork(ctx, "task-1", "agent-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Task.Workflow.ProgressPercentage, 0)
		assert.LessOrEqual(t, res.Task.Workflow.ProgressPercentage, 100)
	}

	assert.Equal(t, task.StatusCompleted, res.Task.Status)
	assert.Equal(t, 100, res.Task.Workflow.ProgressPercentage)
	assert.Equal(t, agent.StatusIdle, res.Agent.Status)
	assert.Equal(t, 1, res.Agent.Performance.TasksCompleted)
	require.NotNil(t, res.Task.Workflow.CompletedAt)

	last := res.Task.Workflow.LastUpdate()
	require.NotNil(t, last)
	assert.Equal(t, 100, last.ProgressPercentage)
	assert.Equal(t, string(task.StatusCompleted), last.Status)

	// assign + 4 start-work commands, one entry each, in order.
	require.Len(t, res.Task.Workflow.ProgressUpdates, 5)
	for i := 1; i < len(res.Task.Workflow.ProgressUpdates); i++ {
		prev := res.Task.Workflow.ProgressUpdates[i-1].Timestamp
		cur := res.Task.Workflow.ProgressUpdates[i].Timestamp
		assert.False(t, cur.Before(prev))
	}
}

func TestStartWorkRequiresAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.StartWork(ctx, "task-1", "agent-1")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestStartWorkMarksAgentBusy(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	res, err := f.engine.StartWork(ctx, "task-1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusBusy, res.Agent.Status)
	assert.Equal(t, task.StatusInProgress, res.Task.Status)
	require.NotNil(t, res.Task.Workflow.StartedAt)
	assert.Equal(t, 1, res.Agent.Performance.CurrentWorkload)
}

func TestUpdateProgressClampsAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	res, err := f.engine.UpdateProgress(ctx, "task-1", "agent-1", 150, "")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Task.Workflow.ProgressPercentage)
	assert.Equal(t, task.StatusCompleted, res.Task.Status)
	assert.Equal(t, 1, res.Agent.Performance.TasksCompleted)

	res, err = f.engine.UpdateProgress(ctx, "task-1", "agent-1", -20, "rollback")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Task.Workflow.ProgressPercentage)
	assert.Equal(t, "rollback", res.Task.Workflow.AgentNotes)
}

func TestCompletionIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	first, err := f.engine.CompleteTask(ctx, "task-1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Agent.Performance.TasksCompleted)
	completedAt := *first.Task.Workflow.CompletedAt

	f.clock.Advance(time.Hour)
	second, err := f.engine.CompleteTask(ctx, "task-1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Agent.Performance.TasksCompleted)
	assert.Equal(t, first.Agent.Performance.TotalHoursWorked, second.Agent.Performance.TotalHoursWorked)
	assert.Equal(t, first.Agent.Performance.AverageCompletionTime, second.Agent.Performance.AverageCompletionTime)
	assert.Equal(t, completedAt, *second.Task.Workflow.CompletedAt)

	// Each command still appends exactly one audit entry.
	assert.Len(t, second.Task.Workflow.ProgressUpdates, 3)
}

func TestCompletionEffectRollsPerformance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	_, err = f.engine.StartWork(ctx, "task-1", "agent-1")
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	res, err := f.engine.CompleteTask(ctx, "task-1", "agent-1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Agent.Performance.TasksCompleted)
	assert.InDelta(t, 4.0, res.Agent.Performance.TotalHoursWorked, 1e-9)
	// First completion: running mean equals elapsed hours since StartedAt.
	assert.InDelta(t, 3.0, res.Agent.Performance.AverageCompletionTime, 1e-9)
}

func TestCompletionDefaultsEstimatedHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.tasks.Get(ctx, "task-1")
	require.NoError(t, err)
	tk.EstimatedHours = 0
	require.NoError(t, f.tasks.Update(ctx, tk))

	_, err = f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	res, err := f.engine.CompleteTask(ctx, "task-1", "agent-1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Agent.Performance.TotalHoursWorked, 1e-9)
}

func TestPauseTask(t *testing.T) {
	f := newFixture(t, 15)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	_, err = f.engine.StartWork(ctx, "task-1", "agent-1")
	require.NoError(t, err)

	res, err := f.engine.PauseTask(ctx, "task-1", "agent-1", "blocked by dependency")
	require.NoError(t, err)

	assert.Equal(t, task.StatusBlocked, res.Task.Status)
	assert.Equal(t, agent.StatusIdle, res.Agent.Status)
	assert.Equal(t, 15, res.Task.Workflow.ProgressPercentage)

	last := res.Task.Workflow.LastUpdate()
	require.NotNil(t, last)
	assert.Equal(t, res.Task.Workflow.AIResponse, last.Note)
	assert.Contains(t, last.Note, "blocked by dependency")
}

func TestUnassignThenReassign(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()

	_, err := f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	_, err = f.engine.StartWork(ctx, "task-1", "agent-1")
	require.NoError(t, err)

	res, err := f.engine.UnassignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	assert.Nil(t, res.Task.AgentAssignee)
	assert.NotContains(t, res.Agent.AssignedTasks, "task-1")
	assert.Equal(t, "unassigned", res.Task.Workflow.LastUpdate().Status)
	// The audit entry preserves the progress reached before unassignment.
	assert.Equal(t, 20, res.Task.Workflow.LastUpdate().ProgressPercentage)

	res, err = f.engine.AssignTask(ctx, "agent-1", "task-1")
	require.NoError(t, err)
	updates := res.Task.Workflow.ProgressUpdates
	require.Len(t, updates, 4)
	assert.Equal(t, "unassigned", updates[2].Status)
	assert.Equal(t, "assigned", updates[3].Status)
	assert.Equal(t, 0, updates[3].ProgressPercentage)
	assert.Equal(t, 0, res.Task.Workflow.ProgressPercentage)
}

func TestAssignProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := &project.Project{
		ID:        "proj-1",
		Name:      "Website",
		Status:    project.StatusActive,
		CreatedAt: f.clock.now,
		UpdatedAt: f.clock.now,
	}
	require.NoError(t, f.projects.Create(ctx, p))

	res, err := f.engine.AssignProject(ctx, "agent-1", "proj-1")
	require.NoError(t, err)
	assert.Contains(t, res.Agent.AssignedProjects, "proj-1")

	// Assigning twice keeps the list deduplicated.
	res, err = f.engine.AssignProject(ctx, "agent-1", "proj-1")
	require.NoError(t, err)
	assert.Len(t, res.Agent.AssignedProjects, 1)

	res, err = f.engine.UnassignProject(ctx, "agent-1", "proj-1")
	require.NoError(t, err)
	assert.Empty(t, res.Agent.AssignedProjects)

	_, err = f.engine.AssignProject(ctx, "agent-1", "missing")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestAuditLogGrowsOnePerCommand(t *testing.T) {
	f := newFixture(t, 40)
	ctx := context.Background()

	commands := []func() (*Result, error){
		func() (*Result, error) { return f.engine.AssignTask(ctx, "agent-1", "task-1") },
		func() (*Result, error) { return f.engine.StartWork(ctx, "task-1", "agent-1") },
		func() (*Result, error) { return f.engine.UpdateProgress(ctx, "task-1", "agent-1", 55, "halfway") },
		func() (*Result, error) { return f.engine.PauseTask(ctx, "task-1", "agent-1", "waiting") },
		func() (*Result, error) { return f.engine.CompleteTask(ctx, "task-1", "agent-1") },
	}

	for i, cmd := range commands {
		res, err := cmd()
		require.NoError(t, err)
		assert.Len(t, res.Task.Workflow.ProgressUpdates, i+1)
		assert.GreaterOrEqual(t, res.Task.Workflow.ProgressPercentage, 0)
		assert.LessOrEqual(t, res.Task.Workflow.ProgressPercentage, 100)
	}
}

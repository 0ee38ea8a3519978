package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/planforge/planforge/internal/agent"
	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/internal/project"
	"github.com/planforge/planforge/internal/task"
	"github.com/planforge/planforge/pkg/cerr"
)

// Clock supplies the current time. Commands take all timestamps from a
// single Clock call so one command produces one observable instant.
type Clock func() time.Time

// Engine executes workflow commands against an agent/task pair. Commands
// for the same task id are serialized through a keyed mutex; commands for
// different tasks run concurrently.
type Engine struct {
	agents   agent.Repository
	tasks    task.Repository
	projects project.Repository
	bus      *eventbus.Bus
	clock    Clock
	source   ProgressSource
	locks    *keyedMutex
}

// Result carries the updated views returned by every command.
type Result struct {
	Task  *task.Task   `json:"task,omitempty"`
	Agent *agent.Agent `json:"agent,omitempty"`
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithProgressSource(s ProgressSource) Option {
	return func(e *Engine) { e.source = s }
}

func NewEngine(agents agent.Repository, tasks task.Repository, projects project.Repository, bus *eventbus.Bus, opts ...Option) *Engine {
	e := &Engine{
		agents:   agents,
		tasks:    tasks,
		projects: projects,
		bus:      bus,
		clock:    time.Now,
		source:   NewRandSource(10, 29),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// load fetches the agent/task pair before any mutation so a missing id
// fails the command without partial writes.
func (e *Engine) load(ctx context.Context, agentID, taskID string) (*agent.Agent, *task.Task, error) {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	t, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return a, t, nil
}

func (e *Engine) save(ctx context.Context, t *task.Task, a *agent.Agent) error {
	if err := e.tasks.Update(ctx, t); err != nil {
		return err
	}
	return e.agents.Update(ctx, a)
}

// AssignTask links the agent and task in both directions and resets the
// workflow progress. Re-assigning to the same agent is a no-op beyond the
// audit entry; assigning a task held by a different agent fails.
func (e *Engine) AssignTask(ctx context.Context, agentID, taskID string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}
	if t.AgentAssignee != nil && *t.AgentAssignee != agentID {
		return nil, cerr.NewError(cerr.FailedPrecondition,
			fmt.Sprintf("task is already assigned to agent %s", *t.AgentAssignee), nil)
	}

	now := e.clock()
	a.AddTask(taskID)
	a.UpdatedAt = now

	t.Assignee = agentID
	t.AgentAssignee = &agentID
	t.Workflow.AssignedAt = &now
	msg := fmt.Sprintf("🤖 Task assigned to %s. Ready to begin work.", a.Name)
	t.Workflow.AIResponse = msg
	t.Workflow.Append(now, "assigned", msg, 0)
	t.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	e.bus.PublishNew(eventbus.EventTaskAssigned, t.ID, "", map[string]string{"agent_id": a.ID, "plan_id": t.PlanID})
	return &Result{Task: t, Agent: a}, nil
}

// UnassignTask removes the bidirectional link. The audit entry preserves
// the progress reached so far; timestamps already set are kept for history.
func (e *Engine) UnassignTask(ctx context.Context, agentID, taskID string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	a.RemoveTask(taskID)
	a.UpdatedAt = now

	t.Assignee = ""
	t.AgentAssignee = nil
	msg := "❌ Task unassigned from agent."
	t.Workflow.AIResponse = msg
	t.Workflow.Append(now, "unassigned", msg, t.Workflow.ProgressPercentage)
	t.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	e.bus.PublishNew(eventbus.EventTaskUnassigned, t.ID, "", map[string]string{"agent_id": a.ID})
	return &Result{Task: t, Agent: a}, nil
}

// AssignProject adds the project to the agent's assignment list.
func (e *Engine) AssignProject(ctx context.Context, agentID, projectID string) (*Result, error) {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := e.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	a.AddProject(projectID)
	a.UpdatedAt = e.clock()
	if err := e.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.EventProjectAssigned, projectID, "", map[string]string{"agent_id": a.ID})
	return &Result{Agent: a}, nil
}

// UnassignProject removes the project from the agent's assignment list.
func (e *Engine) UnassignProject(ctx context.Context, agentID, projectID string) (*Result, error) {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	a.RemoveProject(projectID)
	a.UpdatedAt = e.clock()
	if err := e.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.EventProjectUnassigned, projectID, "", map[string]string{"agent_id": a.ID})
	return &Result{Agent: a}, nil
}

// StartWork advances the simulated work by one increment. The first call
// stamps StartedAt; reaching 100% triggers the completion effect.
func (e *Engine) StartWork(ctx context.Context, taskID, agentID string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}
	if t.AgentAssignee == nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task has no agent assignee", nil)
	}

	now := e.clock()
	a.Status = agent.StatusBusy
	a.Performance.LastActive = now
	a.Performance.CurrentWorkload = len(a.AssignedTasks)
	a.UpdatedAt = now

	if t.Workflow.StartedAt == nil {
		t.Workflow.StartedAt = &now
	}

	progress := t.Workflow.ProgressPercentage + e.source.Increment()
	if progress > 100 {
		progress = 100
	}

	if progress == 100 {
		e.complete(t, a, now, e.responseFor(a.Type, t, 100))
	} else {
		msg := e.responseFor(a.Type, t, progress)
		t.Workflow.AIResponse = msg
		t.Workflow.Append(now, string(task.StatusInProgress), msg, progress)
		if progress > 0 && t.Status == task.StatusTodo {
			t.Status = task.StatusInProgress
		}
	}
	t.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	if t.Status == task.StatusCompleted {
		e.bus.PublishNew(eventbus.EventTaskCompleted, t.ID, "", map[string]string{"agent_id": a.ID})
	} else {
		e.bus.PublishNew(eventbus.EventTaskStarted, t.ID, fmt.Sprintf("%d", progress), map[string]string{"agent_id": a.ID})
	}
	return &Result{Task: t, Agent: a}, nil
}

// UpdateProgress sets the progress to an externally supplied percentage.
// Out-of-range input is clamped, not rejected.
func (e *Engine) UpdateProgress(ctx context.Context, taskID, agentID string, percentage int, note string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	progress := clamp(percentage, 0, 100)
	if note != "" {
		t.Workflow.AgentNotes = note
	}

	if progress == 100 {
		entryNote := note
		if entryNote == "" {
			entryNote = e.responseFor(a.Type, t, 100)
		}
		e.complete(t, a, now, entryNote)
	} else {
		entryNote := note
		if entryNote == "" {
			entryNote = "Manual progress update"
		}
		t.Workflow.Append(now, string(task.StatusInProgress), entryNote, progress)
		if progress > 0 && t.Status == task.StatusTodo {
			t.Status = task.StatusInProgress
		}
	}
	t.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	if t.Status == task.StatusCompleted {
		e.bus.PublishNew(eventbus.EventTaskCompleted, t.ID, "", map[string]string{"agent_id": a.ID})
	} else {
		e.bus.PublishNew(eventbus.EventTaskProgress, t.ID, fmt.Sprintf("%d", progress), map[string]string{"agent_id": a.ID})
	}
	return &Result{Task: t, Agent: a}, nil
}

// CompleteTask applies the completion effect directly.
func (e *Engine) CompleteTask(ctx context.Context, taskID, agentID string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	e.complete(t, a, now, e.responseFor(a.Type, t, 100))
	t.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	e.bus.PublishNew(eventbus.EventTaskCompleted, t.ID, "", map[string]string{"agent_id": a.ID})
	return &Result{Task: t, Agent: a}, nil
}

// PauseTask blocks the task, keeping the progress reached so far.
func (e *Engine) PauseTask(ctx context.Context, taskID, agentID string, reason string) (*Result, error) {
	e.locks.Lock(taskID)
	defer e.locks.Unlock(taskID)

	a, t, err := e.load(ctx, agentID, taskID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	if reason == "" {
		reason = "Manual pause"
	}
	msg := fmt.Sprintf("⏸️ Task paused. Reason: %s", reason)

	t.Status = task.StatusBlocked
	t.Workflow.AIResponse = msg
	t.Workflow.Append(now, string(task.StatusBlocked), msg, t.Workflow.ProgressPercentage)
	t.UpdatedAt = now

	a.Status = agent.StatusIdle
	a.Performance.LastActive = now
	a.UpdatedAt = now

	if err := e.save(ctx, t, a); err != nil {
		return nil, err
	}

	e.bus.PublishNew(eventbus.EventTaskPaused, t.ID, reason, map[string]string{"agent_id": a.ID})
	return &Result{Task: t, Agent: a}, nil
}

// complete applies the completion effect. Re-completing an already
// completed task appends a fresh audit entry but leaves the performance
// counters untouched, so TasksCompleted grows exactly once per task.
func (e *Engine) complete(t *task.Task, a *agent.Agent, now time.Time, note string) {
	already := t.Status == task.StatusCompleted

	t.Status = task.StatusCompleted
	t.Workflow.AIResponse = note
	t.Workflow.Append(now, string(task.StatusCompleted), note, 100)

	a.Status = agent.StatusIdle
	a.Performance.LastActive = now

	if already {
		return
	}

	t.Workflow.CompletedAt = &now

	hours := t.EstimatedHours
	if hours == 0 {
		hours = 1
	}
	a.Performance.TasksCompleted++
	a.Performance.TotalHoursWorked += hours

	start := t.CreatedAt
	if t.Workflow.StartedAt != nil {
		start = *t.Workflow.StartedAt
	}
	elapsed := now.Sub(start).Hours()
	n := float64(a.Performance.TasksCompleted)
	a.Performance.AverageCompletionTime = (a.Performance.AverageCompletionTime*(n-1) + elapsed) / n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

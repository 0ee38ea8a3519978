package analytics

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sourcegraph/conc/pool"

	"github.com/planforge/planforge/internal/agent"
	"github.com/planforge/planforge/internal/task"
)

// AgentWorkload is the per-agent row of the snapshot.
type AgentWorkload struct {
	AgentID        string       `json:"agentId"`
	AgentName      string       `json:"agentName"`
	CurrentTasks   int          `json:"currentTasks"`
	CompletedTasks int          `json:"completedTasks"`
	Efficiency     float64      `json:"efficiency"`
	Status         agent.Status `json:"status"`
}

// Snapshot is a point-in-time projection over agents and tasks.
type Snapshot struct {
	TotalAgents       int             `json:"totalAgents"`
	ActiveAgents      int             `json:"activeAgents"`
	TotalTasks        int             `json:"totalTasks"`
	AssignedTasks     int             `json:"assignedTasks"`
	CompletedTasks    int             `json:"completedTasks"`
	InProgressTasks   int             `json:"inProgressTasks"`
	CompletionRate    float64         `json:"completionRate"`
	TotalHoursWorked  float64         `json:"totalHoursWorked"`
	AverageEfficiency float64         `json:"averageEfficiency"`
	AgentWorkloads    []AgentWorkload `json:"agentWorkloads"`
	GeneratedAt       time.Time       `json:"generatedAt"`
}

const snapshotKey = "snapshot"

// Service folds agent and task state into a Snapshot. The fold is a pure
// projection over the repositories, so results are memoized for a short TTL
// instead of recomputed per request.
type Service struct {
	agents agent.Repository
	tasks  task.Repository
	cache  *gocache.Cache
}

func NewService(agents agent.Repository, tasks task.Repository, ttl time.Duration) *Service {
	return &Service{
		agents: agents,
		tasks:  tasks,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if v, ok := s.cache.Get(snapshotKey); ok {
		return v.(*Snapshot), nil
	}

	var (
		agents []*agent.Agent
		tasks  []*task.Task
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		agents, _, err = s.agents.List(ctx, 0, 0)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		tasks, _, err = s.tasks.List(ctx, task.Filter{}, 0, 0)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	snap := fold(agents, tasks, time.Now())
	s.cache.SetDefault(snapshotKey, snap)
	return snap, nil
}

// Invalidate drops the memoized snapshot so the next read recomputes.
func (s *Service) Invalidate() {
	s.cache.Delete(snapshotKey)
}

func fold(agents []*agent.Agent, tasks []*task.Task, now time.Time) *Snapshot {
	snap := &Snapshot{
		TotalAgents:    len(agents),
		TotalTasks:     len(tasks),
		AgentWorkloads: make([]AgentWorkload, 0, len(agents)),
		GeneratedAt:    now,
	}

	var efficiencySum float64
	for _, a := range agents {
		if a.Status != agent.StatusOffline {
			snap.ActiveAgents++
		}
		snap.TotalHoursWorked += a.Performance.TotalHoursWorked
		efficiencySum += a.Performance.EfficiencyScore
		snap.AgentWorkloads = append(snap.AgentWorkloads, AgentWorkload{
			AgentID:        a.ID,
			AgentName:      a.Name,
			CurrentTasks:   len(a.AssignedTasks),
			CompletedTasks: a.Performance.TasksCompleted,
			Efficiency:     a.Performance.EfficiencyScore,
			Status:         a.Status,
		})
	}
	if len(agents) > 0 {
		snap.AverageEfficiency = efficiencySum / float64(len(agents))
	}

	// Status counts and the completion rate cover agent-assigned tasks only;
	// human-only tasks contribute to TotalTasks and nothing else.
	for _, t := range tasks {
		if t.AgentAssignee == nil {
			continue
		}
		snap.AssignedTasks++
		switch t.Status {
		case task.StatusCompleted:
			snap.CompletedTasks++
		case task.StatusInProgress:
			snap.InProgressTasks++
		}
	}
	if snap.AssignedTasks > 0 {
		snap.CompletionRate = float64(snap.CompletedTasks) / float64(snap.AssignedTasks) * 100
	}
	return snap
}

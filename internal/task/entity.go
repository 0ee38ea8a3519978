package task

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ProgressUpdate is one immutable entry of the workflow audit log.
type ProgressUpdate struct {
	Timestamp          time.Time `yaml:"timestamp" json:"timestamp"`
	Status             string    `yaml:"status" json:"status"`
	Note               string    `yaml:"note,omitempty" json:"note,omitempty"`
	ProgressPercentage int       `yaml:"progress_percentage" json:"progressPercentage"`
}

// AgentWorkflow tracks agent assignment, progress and audit history for a
// task. It is owned by the task record and mutated only by the workflow
// engine. ProgressUpdates is append-only and is the source of truth for
// what happened when; ProgressPercentage and AIResponse mirror the latest
// entry.
type AgentWorkflow struct {
	AssignedAt         *time.Time       `yaml:"assigned_at,omitempty" json:"assignedAt,omitempty"`
	StartedAt          *time.Time       `yaml:"started_at,omitempty" json:"startedAt,omitempty"`
	CompletedAt        *time.Time       `yaml:"completed_at,omitempty" json:"completedAt,omitempty"`
	ProgressPercentage int              `yaml:"progress_percentage" json:"progressPercentage"`
	LastActivityAt     *time.Time       `yaml:"last_activity_at,omitempty" json:"lastActivityAt,omitempty"`
	AIResponse         string           `yaml:"ai_response,omitempty" json:"aiResponse,omitempty"`
	AgentNotes         string           `yaml:"agent_notes,omitempty" json:"agentNotes,omitempty"`
	Blockers           []string         `yaml:"blockers,omitempty" json:"blockers,omitempty"`
	ProgressUpdates    []ProgressUpdate `yaml:"progress_updates" json:"autoProgressUpdates"`
}

// LastUpdate returns the most recent audit entry, or nil when none exists.
func (w *AgentWorkflow) LastUpdate() *ProgressUpdate {
	if len(w.ProgressUpdates) == 0 {
		return nil
	}
	return &w.ProgressUpdates[len(w.ProgressUpdates)-1]
}

// Append records a new audit entry and refreshes the denormalized fields.
func (w *AgentWorkflow) Append(now time.Time, status, note string, progress int) {
	w.ProgressUpdates = append(w.ProgressUpdates, ProgressUpdate{
		Timestamp:          now,
		Status:             status,
		Note:               note,
		ProgressPercentage: progress,
	})
	w.ProgressPercentage = progress
	w.LastActivityAt = &now
}

type Task struct {
	ID             string        `yaml:"id" json:"id"`
	Title          string        `yaml:"title" json:"title"`
	Description    string        `yaml:"description" json:"description"`
	Status         Status        `yaml:"status" json:"status"`
	Priority       Priority      `yaml:"priority" json:"priority"`
	PlanID         string        `yaml:"plan_id" json:"planId"`
	Dependencies   []string      `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Assignee       string        `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	AgentAssignee  *string       `yaml:"agent_assignee,omitempty" json:"agentAssignee,omitempty"`
	DueDate        *time.Time    `yaml:"due_date,omitempty" json:"dueDate,omitempty"`
	EstimatedHours float64       `yaml:"estimated_hours,omitempty" json:"estimatedHours,omitempty"`
	ActualHours    float64       `yaml:"actual_hours,omitempty" json:"actualHours,omitempty"`
	Tags           []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	MilestoneID    string        `yaml:"milestone_id,omitempty" json:"milestoneId,omitempty"`
	Workflow       AgentWorkflow `yaml:"workflow" json:"agentWorkflow"`
	CreatedAt      time.Time     `yaml:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `yaml:"updated_at" json:"updatedAt"`
}

// AssignedTo reports whether the task is currently assigned to agentID.
func (t *Task) AssignedTo(agentID string) bool {
	return t.AgentAssignee != nil && *t.AgentAssignee == agentID
}

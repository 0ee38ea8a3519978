package agent

import "time"

type Type string

const (
	TypeCodeReviewer  Type = "code-reviewer"
	TypeTaskExecutor  Type = "task-executor"
	TypeBugFixer      Type = "bug-fixer"
	TypeDocumentation Type = "documentation"
	TypeTesting       Type = "testing"
	TypeCustom        Type = "custom"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCodeReviewer, TypeTaskExecutor, TypeBugFixer, TypeDocumentation, TypeTesting, TypeCustom:
		return true
	}
	return false
}

type Status string

const (
	StatusActive  Status = "active"
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIdle, StatusBusy, StatusOffline:
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

type WorkingHours struct {
	Start string `yaml:"start" json:"start"` // HH:MM
	End   string `yaml:"end" json:"end"`     // HH:MM
}

// Configuration is operator-supplied data. The workflow engine stores it but
// does not enforce max concurrency or working hours as hard constraints.
type Configuration struct {
	MaxConcurrentTasks int          `yaml:"max_concurrent_tasks" json:"maxConcurrentTasks"`
	WorkingHours       WorkingHours `yaml:"working_hours" json:"workingHours"`
	AutoAcceptTasks    bool         `yaml:"auto_accept_tasks" json:"autoAcceptTasks"`
	PriorityThreshold  Priority     `yaml:"priority_threshold" json:"priorityThreshold"`
	Skills             []string     `yaml:"skills" json:"skills"`
	Model              string       `yaml:"model" json:"model"`
	Instructions       string       `yaml:"instructions" json:"instructions"`
}

type Performance struct {
	TasksCompleted        int       `yaml:"tasks_completed" json:"tasksCompleted"`
	AverageCompletionTime float64   `yaml:"average_completion_time" json:"averageCompletionTime"` // hours
	SuccessRate           float64   `yaml:"success_rate" json:"successRate"`                      // percentage
	LastActive            time.Time `yaml:"last_active" json:"lastActive"`
	TotalHoursWorked      float64   `yaml:"total_hours_worked" json:"totalHoursWorked"`
	CurrentWorkload       int       `yaml:"current_workload" json:"currentWorkload"`
	EfficiencyScore       float64   `yaml:"efficiency_score" json:"efficiencyScore"` // 0-100
	ResponseTime          float64   `yaml:"response_time" json:"responseTime"`       // minutes
	QualityScore          float64   `yaml:"quality_score" json:"qualityScore"`       // 0-100
}

type Agent struct {
	ID               string        `yaml:"id" json:"id"`
	Name             string        `yaml:"name" json:"name"`
	Description      string        `yaml:"description" json:"description"`
	Type             Type          `yaml:"type" json:"type"`
	Status           Status        `yaml:"status" json:"status"`
	Capabilities     []string      `yaml:"capabilities" json:"capabilities"`
	AssignedProjects []string      `yaml:"assigned_projects" json:"assignedProjects"`
	AssignedTasks    []string      `yaml:"assigned_tasks" json:"assignedTasks"`
	Configuration    Configuration `yaml:"configuration" json:"configuration"`
	Performance      Performance   `yaml:"performance" json:"performance"`
	CreatedAt        time.Time     `yaml:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `yaml:"updated_at" json:"updatedAt"`
}

// DefaultConfiguration returns the baseline configuration applied to fields
// a create request leaves unset.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxConcurrentTasks: 3,
		WorkingHours:       WorkingHours{Start: "09:00", End: "17:00"},
		AutoAcceptTasks:    false,
		PriorityThreshold:  PriorityMedium,
		Skills:             []string{},
		Model:              "gpt-4",
	}
}

// DefaultPerformance returns the baseline stats for a freshly created agent.
func DefaultPerformance(now time.Time) Performance {
	return Performance{
		TasksCompleted:        0,
		AverageCompletionTime: 0,
		SuccessRate:           100,
		LastActive:            now,
		TotalHoursWorked:      0,
		CurrentWorkload:       0,
		EfficiencyScore:       85,
		ResponseTime:          30,
		QualityScore:          90,
	}
}

// HasTask reports whether taskID is in the agent's assigned task list.
func (a *Agent) HasTask(taskID string) bool {
	for _, id := range a.AssignedTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// AddTask appends taskID if not already present.
func (a *Agent) AddTask(taskID string) {
	if !a.HasTask(taskID) {
		a.AssignedTasks = append(a.AssignedTasks, taskID)
	}
}

// RemoveTask removes taskID from the assigned task list.
func (a *Agent) RemoveTask(taskID string) {
	out := a.AssignedTasks[:0]
	for _, id := range a.AssignedTasks {
		if id != taskID {
			out = append(out, id)
		}
	}
	a.AssignedTasks = out
}

// HasProject reports whether projectID is in the assigned project list.
func (a *Agent) HasProject(projectID string) bool {
	for _, id := range a.AssignedProjects {
		if id == projectID {
			return true
		}
	}
	return false
}

// AddProject appends projectID if not already present.
func (a *Agent) AddProject(projectID string) {
	if !a.HasProject(projectID) {
		a.AssignedProjects = append(a.AssignedProjects, projectID)
	}
}

// RemoveProject removes projectID from the assigned project list.
func (a *Agent) RemoveProject(projectID string) {
	out := a.AssignedProjects[:0]
	for _, id := range a.AssignedProjects {
		if id != projectID {
			out = append(out, id)
		}
	}
	a.AssignedProjects = out
}

package task

import "context"

// Filter narrows List results. Zero values match everything.
type Filter struct {
	PlanID        string
	Status        Status
	AgentAssigned bool // only tasks with an agent assignee
}

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Task, int, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

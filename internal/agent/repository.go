package agent

import "context"

type Repository interface {
	Create(ctx context.Context, a *Agent) error
	Get(ctx context.Context, id string) (*Agent, error)
	List(ctx context.Context, limit, offset int) ([]*Agent, int, error)
	Update(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, id string) error
}

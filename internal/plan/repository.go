package plan

import "context"

type Repository interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, projectID string, limit, offset int) ([]*Plan, int, error)
	Update(ctx context.Context, p *Plan) error
	Delete(ctx context.Context, id string) error
}

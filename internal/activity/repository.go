package activity

import "context"

type Repository interface {
	Create(ctx context.Context, a *Activity) error
	// List returns the most recent activities first, at most limit entries.
	List(ctx context.Context, limit int) ([]*Activity, error)
}

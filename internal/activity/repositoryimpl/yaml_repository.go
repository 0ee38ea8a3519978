package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/internal/activity"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/storage"
)

const activitiesPrefix = "activities"

type YAMLRepository struct {
	storage storage.Storage
}

var _ activity.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", activitiesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, a *activity.Activity) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal activity: %w", err))
	}
	if err := r.storage.Write(ctx, path(a.ID), data); err != nil {
		return cerr.WrapStorageWriteError("activity", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context, limit int) ([]*activity.Activity, error) {
	paths, err := r.storage.List(ctx, activitiesPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("activities", err)
	}

	// Activity IDs are ULIDs, so path order is creation order. Newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	activities := make([]*activity.Activity, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var a activity.Activity
		if err := yaml.Unmarshal(data, &a); err != nil {
			continue
		}
		activities = append(activities, &a)
	}
	return activities, nil
}

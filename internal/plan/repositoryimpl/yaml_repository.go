package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/planforge/planforge/internal/plan"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/storage"
)

const plansPrefix = "plans"

type YAMLRepository struct {
	storage storage.Storage
}

var _ plan.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", plansPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, p *plan.Plan) error {
	exists, err := r.storage.Exists(ctx, path(p.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("plan", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "plan already exists", nil)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal plan: %w", err))
	}
	if err := r.storage.Write(ctx, path(p.ID), data); err != nil {
		return cerr.WrapStorageWriteError("plan", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("plan", err)
	}
	var p plan.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal plan: %w", err))
	}
	return &p, nil
}

func (r *YAMLRepository) List(ctx context.Context, projectID string, limit, offset int) ([]*plan.Plan, int, error) {
	paths, err := r.storage.List(ctx, plansPrefix)
	if err != nil {
		return nil, 0, cerr.WrapStorageReadError("plans", err)
	}

	sort.Strings(paths)

	var all []*plan.Plan
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var pl plan.Plan
		if err := yaml.Unmarshal(data, &pl); err != nil {
			continue
		}
		if projectID != "" && pl.ProjectID != projectID {
			continue
		}
		all = append(all, &pl)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *YAMLRepository) Update(ctx context.Context, p *plan.Plan) error {
	exists, err := r.storage.Exists(ctx, path(p.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("plan", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "plan not found", nil)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal plan: %w", err))
	}
	if err := r.storage.Write(ctx, path(p.ID), data); err != nil {
		return cerr.WrapStorageWriteError("plan", err)
	}
	return nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("plan", err)
	}
	return nil
}

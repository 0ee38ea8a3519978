package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/planforge/planforge/internal/activity"
	activityrepo "github.com/planforge/planforge/internal/activity/repositoryimpl"
	"github.com/planforge/planforge/internal/agent"
	agentrepo "github.com/planforge/planforge/internal/agent/repositoryimpl"
	"github.com/planforge/planforge/internal/analytics"
	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/eventbus"
	"github.com/planforge/planforge/internal/plan"
	planrepo "github.com/planforge/planforge/internal/plan/repositoryimpl"
	"github.com/planforge/planforge/internal/project"
	projectrepo "github.com/planforge/planforge/internal/project/repositoryimpl"
	"github.com/planforge/planforge/internal/task"
	taskrepo "github.com/planforge/planforge/internal/task/repositoryimpl"
	"github.com/planforge/planforge/internal/workflow"
	"github.com/planforge/planforge/pkg/clog"
	"github.com/planforge/planforge/pkg/metrics"
	"github.com/planforge/planforge/pkg/storage"

	server "github.com/planforge/planforge/internal"
)

// directory resolves assignment ids into display summaries for the expanded
// agent view.
type directory struct {
	projectRepo project.Repository
	taskRepo    task.Repository
}

func (d *directory) ProjectSummaries(ctx context.Context, ids []string) []agent.ProjectSummary {
	summaries := make([]agent.ProjectSummary, 0, len(ids))
	for _, id := range ids {
		p, err := d.projectRepo.Get(ctx, id)
		if err != nil {
			continue
		}
		summaries = append(summaries, agent.ProjectSummary{
			ID:     p.ID,
			Name:   p.Name,
			Status: string(p.Status),
		})
	}
	return summaries
}

func (d *directory) TaskSummaries(ctx context.Context, ids []string) []agent.TaskSummary {
	summaries := make([]agent.TaskSummary, 0, len(ids))
	for _, id := range ids {
		t, err := d.taskRepo.Get(ctx, id)
		if err != nil {
			continue
		}
		summaries = append(summaries, agent.TaskSummary{
			ID:       t.ID,
			Title:    t.Title,
			Status:   string(t.Status),
			Priority: string(t.Priority),
		})
	}
	return summaries
}

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewHTTPTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	projectRepo := projectrepo.NewYAMLRepository(store)
	planRepo := planrepo.NewYAMLRepository(store)
	taskRepo := taskrepo.NewYAMLRepository(store)
	agentRepo := agentrepo.NewYAMLRepository(store)
	activityRepo := activityrepo.NewYAMLRepository(store)

	// Setup metrics
	reg := metrics.NewRegistry()

	// Setup workflow engine
	engine := workflow.NewEngine(agentRepo, taskRepo, projectRepo, bus,
		workflow.WithProgressSource(workflow.NewRandSource(env.WorkflowEnv.MinIncrement, env.WorkflowEnv.MaxIncrement)),
	)

	// Setup analytics
	analyticsService := analytics.NewService(agentRepo, taskRepo, env.AnalyticsEnv.CacheTTL)

	// Setup servers
	projectServer := project.NewServer(projectRepo)
	planServer := plan.NewServer(planRepo)
	taskServer := task.NewServer(taskRepo, planRepo, bus)
	agentServer := agent.NewServer(agentRepo, &directory{projectRepo: projectRepo, taskRepo: taskRepo}, bus)
	workflowServer := workflow.NewServer(engine, reg)
	analyticsServer := analytics.NewServer(analyticsService)
	activityServer := activity.NewServer(activityRepo)

	srv := server.NewServer(
		env,
		reg,
		projectServer,
		planServer,
		taskServer,
		agentServer,
		workflowServer,
		analyticsServer,
		activityServer,
	)

	// Setup activity dispatcher
	dispatcher := activity.NewDispatcher(activityRepo, bus, analyticsService, slog.Default())

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go dispatcher.Run(ctx)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

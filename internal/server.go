package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/planforge/planforge/internal/activity"
	"github.com/planforge/planforge/internal/agent"
	"github.com/planforge/planforge/internal/analytics"
	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/plan"
	"github.com/planforge/planforge/internal/project"
	"github.com/planforge/planforge/internal/task"
	"github.com/planforge/planforge/internal/workflow"
	"github.com/planforge/planforge/pkg/cerr"
	"github.com/planforge/planforge/pkg/clog"
	"github.com/planforge/planforge/pkg/metrics"
)

type Server struct {
	server          *http.Server
	env             *config.Env
	metrics         *metrics.Registry
	projectServer   *project.Server
	planServer      *plan.Server
	taskServer      *task.Server
	agentServer     *agent.Server
	workflowServer  *workflow.Server
	analyticsServer *analytics.Server
	activityServer  *activity.Server
}

func NewServer(
	env *config.Env,
	reg *metrics.Registry,
	projectServer *project.Server,
	planServer *plan.Server,
	taskServer *task.Server,
	agentServer *agent.Server,
	workflowServer *workflow.Server,
	analyticsServer *analytics.Server,
	activityServer *activity.Server,
) *Server {
	return &Server{
		env:             env,
		metrics:         reg,
		projectServer:   projectServer,
		planServer:      planServer,
		taskServer:      taskServer,
		agentServer:     agentServer,
		workflowServer:  workflowServer,
		analyticsServer: analyticsServer,
		activityServer:  activityServer,
	}
}

// ListenAndServe starts the HTTP server. The provided context is used as the
// base context for all incoming requests via http.Server.BaseContext, so
// cancelling it on shutdown also cancels in-flight request contexts.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
		)
		s.projectServer.RegisterRoutes(r)
		s.planServer.RegisterRoutes(r)
		s.taskServer.RegisterRoutes(r)
		s.agentServer.RegisterRoutes(r)
		s.workflowServer.RegisterRoutes(r)
		s.analyticsServer.RegisterRoutes(r)
		s.activityServer.RegisterRoutes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", s.metrics.Handler())
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(s.countRequests(mux))), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for operational endpoints.
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		class := strconv.Itoa(rec.status/100) + "xx"
		s.metrics.HTTPRequests.WithLabelValues(r.Method, class).Inc()
	})
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the process registry with the domain collectors the
// server exposes on /metrics.
type Registry struct {
	registry *prometheus.Registry

	WorkflowCommands *prometheus.CounterVec
	TasksCompleted   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Registry{
		registry: r,
		WorkflowCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planforge",
			Subsystem: "workflow",
			Name:      "commands_total",
			Help:      "Workflow commands processed, by action and outcome.",
		}, []string{"action", "outcome"}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planforge",
			Subsystem: "workflow",
			Name:      "tasks_completed_total",
			Help:      "Tasks driven to completion by the workflow engine.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method and status class.",
		}, []string{"method", "class"}),
	}
	r.MustRegister(m.WorkflowCommands, m.TasksCompleted, m.HTTPRequests)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one workflow command execution.
func (m *Registry) ObserveCommand(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.WorkflowCommands.WithLabelValues(action, outcome).Inc()
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nightwatch_tasks_total",
			Help: "Number of loaded tasks by state",
		},
		[]string{"state"},
	)

	TaskRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_task_runs_total",
			Help: "Total number of task ticks by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	TaskFailed = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nightwatch_task_failed",
			Help: "Whether the task is currently failed (1) or conforming (0)",
		},
		[]string{"task"},
	)

	// Provider metrics
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_provider_errors_total",
			Help: "Total number of provider collection errors by task and provider",
		},
		[]string{"task", "provider"},
	)

	// Action metrics
	ActionsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_actions_executed_total",
			Help: "Total number of action executions by action and result",
		},
		[]string{"action", "result"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nightwatch_api_requests_total",
			Help: "Total number of control API requests by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksTotal,
		TaskRunsTotal,
		TaskFailed,
		ProviderErrorsTotal,
		ActionsExecutedTotal,
		APIRequestsTotal,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics exposes the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts all chat requests received.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridchat_chat_requests_total",
		Help: "Total chat requests received.",
	})

	// PlanUsage counts chat requests per selected execution plan.
	PlanUsage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridchat_plan_usage_total",
		Help: "Chat requests per execution plan.",
	}, []string{"plan"})

	// Errors counts requests whose final payload carried an error.
	Errors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridchat_request_errors_total",
		Help: "Chat requests that finished with an error set.",
	})
)

// Package metrics holds the client's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "splitwiser_client"

// APIRequests counts gateway calls by operation and outcome (ok, error, unauthorized).
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "requests_total",
	Help:      "Total API gateway calls by operation and outcome.",
}, []string{"operation", "outcome"})

// APIRequestDuration tracks gateway call latency.
var APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "api",
	Name:      "request_duration_seconds",
	Help:      "API gateway call latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// ViewTransitions counts view changes made by the orchestrator.
var ViewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "view",
	Name:      "transitions_total",
	Help:      "Total view transitions by source and target view.",
}, []string{"from", "to"})

// StaleResults counts async results dropped because their binding was abandoned.
var StaleResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "view",
	Name:      "stale_results_total",
	Help:      "Total late async results discarded by the staleness guard.",
}, []string{"kind"})

// Notifications counts notifications shown, by kind.
var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notify",
	Name:      "notifications_total",
	Help:      "Total notifications shown by kind.",
}, []string{"kind"})

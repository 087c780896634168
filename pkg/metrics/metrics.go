package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Publishes counts publish operations by path (create|update|regenerate) and result.
	Publishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offering_publishes_total",
			Help: "Total number of offering publish operations",
		},
		[]string{"path", "result"},
	)

	// Transitions counts lifecycle transition attempts by target state and result.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offering_transitions_total",
			Help: "Total number of offering lifecycle transitions",
		},
		[]string{"target", "result"},
	)

	// SagaCompensations counts compensation runs triggered by failed forward steps.
	SagaCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offering_saga_compensations_total",
			Help: "Total number of saga compensations executed",
		},
		[]string{"operation"},
	)

	// CatalogRequests counts outbound catalog calls by operation and outcome.
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offering_catalog_requests_total",
			Help: "Total number of requests issued to the remote catalog",
		},
		[]string{"operation", "result"},
	)

	// ConsistencyWarnings counts degraded read-path merges where the remote
	// catalog returned fewer documents than the local store expected.
	ConsistencyWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offering_consistency_warnings_total",
			Help: "Local/remote document count mismatches observed while listing",
		},
	)

	// PendingRevocations tracks records whose remote revoke still needs reconciling.
	PendingRevocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offering_pending_revocations",
			Help: "Number of retired offerings awaiting a successful remote revoke",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offering_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

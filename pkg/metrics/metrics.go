// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jarvis"

var (
	// CommandsTotal counts processed submissions by verb and outcome (succeeded, rejected, failed).
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of processed commands by verb and outcome.",
		},
		[]string{"verb", "outcome"},
	)

	CommandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command dispatch duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 10), // 10ms to ~38s
		},
		[]string{"verb"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Number of commands currently being executed by workers.",
		},
	)

	// SubmissionsRejectedTotal counts submissions refused before queueing (queue_full, rate_limited).
	SubmissionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_rejected_total",
			Help:      "Total number of submissions rejected before execution.",
		},
		[]string{"reason"},
	)

	CacheRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_refresh_total",
			Help:      "Total number of search cache refreshes by result.",
		},
		[]string{"namespace", "kind", "result"},
	)

	CacheNames = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_cache_names",
			Help:      "Number of names held in the search cache.",
		},
		[]string{"namespace", "kind"},
	)

	// SearchTotal counts searches by the tier that produced the result (exact, prefix, substring, none, live).
	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Total number of resource name searches by matching tier.",
		},
		[]string{"tier"},
	)

	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Total number of results that could not be delivered to Slack.",
		},
	)
)

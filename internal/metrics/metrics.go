// Package metrics exposes Prometheus collectors for the solver service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions created over the process lifetime.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skarn_sessions_created_total",
		Help: "Total number of solver sessions created",
	})

	// SessionsActive tracks the number of currently held sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skarn_sessions_active",
		Help: "Number of solver sessions currently held",
	})

	// Mutations counts incremental model mutations by operation.
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skarn_mutations_total",
		Help: "Total number of incremental model mutations",
	}, []string{"op"})

	// Solves counts solve calls by terminal status.
	Solves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skarn_solves_total",
		Help: "Total number of solve calls by model status",
	}, []string{"status"})

	// SolveDuration observes wall-clock solve time in seconds.
	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "skarn_solve_duration_seconds",
		Help:    "Wall-clock duration of solve calls",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

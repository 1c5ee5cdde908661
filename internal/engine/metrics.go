// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes reported by executionsTotal.
const (
	outcomeOK      = "ok"
	outcomePartial = "partial"
	outcomeCached  = "cached"
	outcomeError   = "error"
)

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_engine_executions_total",
			Help: "Total number of query executions, by outcome.",
		},
		[]string{"outcome"},
	)

	executionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sieve_engine_execution_duration_seconds",
			Help:    "Duration of query executions that were not served from cache.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	executionSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sieve_engine_execution_steps",
			Help:    "Node expansions performed per execution.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	contextResolutionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sieve_engine_context_resolution_failures_total",
			Help: "Predicates that evaluated to false because a $parent value could not be resolved.",
		},
	)
)

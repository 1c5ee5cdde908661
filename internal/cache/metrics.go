// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sieve_cache_requests_total",
			Help: "Result cache lookups, by tier and result.",
		},
		[]string{"tier", "result"},
	)

	inconsistentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sieve_cache_inconsistent_total",
		Help: "Cache entries discarded because their content checksum did not match.",
	})

	invalidatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sieve_cache_invalidated_total",
		Help: "Cache entries removed because a newer graph version was observed.",
	})

	droppedWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sieve_cache_dropped_writes_total",
		Help: "Cache writes ignored because they targeted a stale graph version.",
	})
)

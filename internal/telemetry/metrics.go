/*
Copyright (C) 2026 Chalkboard Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the scheduling engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GenerationRunsTotal counts generation runs by tenant and mode
	// (commit, dry_run).
	GenerationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_generation_runs_total",
		Help: "Total schedule generation runs",
	}, []string{"tenant", "mode"})

	// OccurrencesGeneratedTotal counts occurrences produced by rule expansion
	// before conflict resolution.
	OccurrencesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_occurrences_generated_total",
		Help: "Total occurrences produced by recurrence expansion",
	}, []string{"tenant"})

	// ConflictsTotal counts conflicts by kind (batch, existing).
	ConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_schedule_conflicts_total",
		Help: "Total scheduling conflicts detected",
	}, []string{"tenant", "kind"})

	// SessionsCreatedTotal counts sessions inserted by the generator.
	SessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_sessions_created_total",
		Help: "Total sessions created by generation runs",
	}, []string{"tenant"})

	// SessionsSkippedTotal counts candidates skipped as already persisted.
	SessionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_sessions_skipped_total",
		Help: "Total candidates skipped because an identical session exists",
	}, []string{"tenant"})

	// SessionsDeletedTotal counts sessions removed by range resets.
	SessionsDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_sessions_deleted_total",
		Help: "Total sessions deleted by schedule resets",
	}, []string{"tenant"})

	// BulkTransitionsTotal counts bulk status transitions by cancel reason.
	BulkTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chalkboard_bulk_transitions_total",
		Help: "Total sessions transitioned by bulk cancel operations",
	}, []string{"tenant", "reason"})

	// GenerationDuration observes end-to-end generation run latency.
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chalkboard_generation_duration_seconds",
		Help:    "Duration of schedule generation runs",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

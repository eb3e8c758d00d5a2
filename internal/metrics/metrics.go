// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package metrics exposes Prometheus instrumentation for every Curator
// subsystem: signal ingestion, aggregation, privacy, the learning pipeline,
// recommendation serving, experiments, and canary rollouts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signal ingestion
	SignalsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_signals_ingested_total",
			Help: "Total feedback signals accepted, by kind",
		},
		[]string{"kind"},
	)

	SignalsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_signals_rejected_total",
			Help: "Total feedback signals rejected at validation",
		},
		[]string{"reason"},
	)

	SignalsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_signals_deduped_total",
			Help: "Total duplicate submissions dropped by idempotency key",
		},
	)

	SignalsDeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_signals_dead_lettered_total",
			Help: "Total signals sent to the dead-letter topic after retry exhaustion",
		},
	)

	RealtimeProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_realtime_profile_updates_total",
			Help: "Immediate profile updates triggered by high-confidence signals",
		},
		[]string{"outcome"}, // "ok", "conflict_retry", "breaker_open", "error"
	)

	ProfileWriteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_profile_write_conflicts_total",
			Help: "Optimistic-versioning conflicts detected on profile writes",
		},
	)

	// Aggregation and privacy
	AggregateBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_aggregate_batches_total",
			Help: "Aggregation window flushes, by disposition",
		},
		[]string{"disposition"}, // "emitted", "low_confidence", "deferred", "empty"
	)

	AggregateGroupsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_aggregate_groups_dropped_total",
			Help: "Signal groups dropped by quality filters",
		},
		[]string{"filter"}, // "min_count", "outlier"
	)

	PrivacyBudgetSpent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_privacy_budget_spent_epsilon",
			Help: "Cumulative epsilon spent by the privacy processor",
		},
	)

	PrivacyBatchesDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_privacy_batches_deferred_total",
			Help: "Batches deferred because the window privacy budget was exhausted",
		},
	)

	// Learning pipeline
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_pipeline_runs_total",
			Help: "Learning pipeline runs, by outcome",
		},
		[]string{"outcome"}, // "deployed", "aborted", "rejected", "error"
	)

	PipelineStageConfidence = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curator_pipeline_stage_confidence",
			Help: "Confidence reported by the most recent run of each pipeline stage",
		},
		[]string{"stage"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_pipeline_stage_duration_seconds",
			Help:    "Duration of learning pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ModelValidationAccuracy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_model_validation_accuracy",
			Help: "Held-out accuracy of the most recent candidate model",
		},
	)

	ModelVersionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_model_versions_rejected_total",
			Help: "Candidate models rejected by the validation gate",
		},
	)

	// Recommendation serving
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_recommend_duration_seconds",
			Help:    "Latency of recommendation requests",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"path"}, // "personalized", "fallback"
	)

	RecommendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_recommend_fallbacks_total",
			Help: "Requests served by the popularity fallback",
		},
		[]string{"cause"}, // "no_profile", "no_model", "index_error"
	)

	// Experiments and canary
	ExperimentAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_experiment_assignments_total",
			Help: "Variant assignments, by experiment and variant",
		},
		[]string{"experiment", "variant"},
	)

	CanaryStage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_canary_stage_percent",
			Help: "Current canary traffic percentage (0 when no rollout active)",
		},
	)

	CanaryRollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_canary_rollbacks_total",
			Help: "Automatic canary rollbacks, by guardrail",
		},
		[]string{"guardrail"}, // "error_rate", "latency"
	)

	CanaryPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_canary_promotions_total",
			Help: "Model versions fully promoted to active via canary",
		},
	)
)

// ObserveRecommend records one recommendation request.
func ObserveRecommend(path string, start time.Time) {
	RecommendDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// ObserveStage records one pipeline stage execution.
func ObserveStage(stage string, confidence float64, start time.Time) {
	PipelineStageConfidence.WithLabelValues(stage).Set(confidence)
	PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

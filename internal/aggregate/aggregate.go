// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package aggregate batches feedback signals over a bounded window, groups
// them by (kind, target), and reduces each group to consensus statistics.
// Quality filters drop sparse groups and z-score outliers; a batch whose
// overall confidence falls below the configured floor is aborted rather than
// handed to the learning path.
package aggregate

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aitoolsdir/curator/internal/signal"
)

// GroupKey identifies one aggregation group.
type GroupKey struct {
	Kind     signal.Kind `json:"kind"`
	TargetID string      `json:"target_id"`
}

// TimeRange bounds the window a batch covers.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AggregatedSignal is the consensus reduction of one group. Consumed once by
// the learning pipeline, then retired.
type AggregatedSignal struct {
	Key GroupKey `json:"key"`

	// Count is the number of signals surviving the quality filters.
	Count int `json:"count"`

	// AvgStrength is the mean strength of surviving signals.
	AvgStrength float64 `json:"avg_strength"`

	// ConsensusLevel in [0,1] measures how much the group agrees: 1 means
	// identical strengths, 0 means maximal disagreement.
	ConsensusLevel float64 `json:"consensus_level"`

	TimeRange TimeRange `json:"time_range"`

	// SubjectIDs lists the pseudonymous subjects contributing to the group.
	// The privacy processor re-pseudonymizes these before the batch crosses
	// into the training path.
	SubjectIDs []string `json:"subject_ids,omitempty"`
}

// Batch is one flushed aggregation window.
type Batch struct {
	ID     string    `json:"id"`
	Window TimeRange `json:"window"`

	Groups []AggregatedSignal `json:"groups"`

	// Confidence in [0,1] expresses how trustworthy this batch is, combining
	// the fraction of signals surviving filters with group consensus.
	Confidence float64 `json:"confidence"`

	// SignalIDs are the raw signals consumed by this batch, for archival.
	SignalIDs []string `json:"signal_ids"`

	// SignalCount is the number of signals observed in the window before
	// filtering.
	SignalCount int `json:"signal_count"`
}

// NewBatch creates an empty batch covering the given window.
func NewBatch(window TimeRange) *Batch {
	return &Batch{ID: uuid.New().String(), Window: window}
}

// mean returns the arithmetic mean of vs. Zero for empty input.
func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddev returns the population standard deviation of vs.
func stddev(vs []float64, m float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vs)))
}

// consensus maps a group's strength spread onto [0,1]. Strengths live in
// [0,1], where the largest possible population stddev is 0.5 (half the group
// at 0, half at 1), so the spread is normalized against that bound.
func consensus(sd float64) float64 {
	c := 1 - sd/0.5
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

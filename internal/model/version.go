// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package model defines ranking-model versions and the registry that owns
// their lifecycle. Status transitions are one-directional (draft -> canary
// -> active -> retired) and at most one version is active at a time; the
// active version is an atomically swapped immutable snapshot, never mutated
// in place.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a version's lifecycle state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusCanary  Status = "canary"
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusCanary, StatusActive, StatusRetired:
		return true
	}
	return false
}

// canTransition encodes the one-directional lifecycle. A canary retires
// directly on rollback; every other path moves forward one step.
func canTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		// Canary when the draft advances, retired when an evaluation
		// rejects it.
		return to == StatusCanary || to == StatusRetired
	case StatusCanary:
		return to == StatusActive || to == StatusRetired
	case StatusActive:
		return to == StatusRetired
	}
	return false
}

// TransitionError reports a refused lifecycle transition.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("model %s: transition %s -> %s not allowed", e.ID, e.From, e.To)
}

// Weights are the learned scoring weights applied by the recommendation
// engine. All weights are non-negative; Normalize rescales them to sum to 1.
type Weights struct {
	Similarity float64 `json:"similarity"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
	Preference float64 `json:"preference"`
}

// DefaultWeights is the untrained starting point.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.5, Recency: 0.15, Popularity: 0.15, Preference: 0.2}
}

// Normalize rescales the weights to sum to 1, clamping negatives to zero.
func (w Weights) Normalize() Weights {
	if w.Similarity < 0 {
		w.Similarity = 0
	}
	if w.Recency < 0 {
		w.Recency = 0
	}
	if w.Popularity < 0 {
		w.Popularity = 0
	}
	if w.Preference < 0 {
		w.Preference = 0
	}
	sum := w.Similarity + w.Recency + w.Popularity + w.Preference
	if sum == 0 {
		return DefaultWeights()
	}
	w.Similarity /= sum
	w.Recency /= sum
	w.Popularity /= sum
	w.Preference /= sum
	return w
}

// TrainingRecord is one entry in a version's training history.
type TrainingRecord struct {
	BatchID            string    `json:"batch_id"`
	Timestamp          time.Time `json:"timestamp"`
	SignalCount        int       `json:"signal_count"`
	LearningRate       float64   `json:"learning_rate"`
	ValidationAccuracy float64   `json:"validation_accuracy"`
}

// Version is one ranking model. Once registered a version's weights are
// immutable; training produces a new version instead.
type Version struct {
	ID        string    `json:"id"`
	Weights   Weights   `json:"weights"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`

	// EmbeddingIndexRef names the similarity index snapshot this version
	// scores against.
	EmbeddingIndexRef string `json:"embedding_index_ref"`

	// Personalization is an optional low-dimensional adjustment vector
	// fine-tuned alongside the weights.
	Personalization []float32 `json:"personalization,omitempty"`

	// TrainingHistory is ordered oldest first.
	TrainingHistory []TrainingRecord `json:"training_history"`
}

// NewVersion creates a draft version.
func NewVersion(weights Weights, indexRef string) *Version {
	return &Version{
		ID:                uuid.New().String(),
		Weights:           weights,
		CreatedAt:         time.Now().UTC(),
		Status:            StatusDraft,
		EmbeddingIndexRef: indexRef,
	}
}

// Clone returns a deep copy.
func (v *Version) Clone() *Version {
	cp := *v
	if v.Personalization != nil {
		cp.Personalization = make([]float32, len(v.Personalization))
		copy(cp.Personalization, v.Personalization)
	}
	if v.TrainingHistory != nil {
		cp.TrainingHistory = make([]TrainingRecord, len(v.TrainingHistory))
		copy(cp.TrainingHistory, v.TrainingHistory)
	}
	return &cp
}

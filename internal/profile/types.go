// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package profile owns per-subject personalization state: the interest
// embedding maintained incrementally on the real-time path and rebuilt on
// the batch path, explicit category preferences, and an activity level.
//
// Profiles are keyed by pseudonymous subject ID and versioned for
// optimistic concurrency: concurrent writers detect conflicts and retry
// rather than losing updates.
package profile

import (
	"time"
)

// UserProfile is the per-subject personalization record.
type UserProfile struct {
	// SubjectID is the pseudonymous subject identifier.
	SubjectID string `json:"subject_id"`

	// Embedding is the subject's interest vector, same dimension as item
	// embeddings. Opaque to this package.
	Embedding []float32 `json:"embedding"`

	// ExplicitPreferences are categories the subject opted into.
	ExplicitPreferences []string `json:"explicit_preferences,omitempty"`

	// BlockedCategories are categories the subject excluded; filtered out
	// during business filtering regardless of score.
	BlockedCategories []string `json:"blocked_categories,omitempty"`

	// ActivityLevel is a decayed interaction counter used to weight
	// real-time updates.
	ActivityLevel float64 `json:"activity_level"`

	// Version increments on every successful write. Writers must submit
	// the version they read; stale versions are rejected.
	Version uint64 `json:"version"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy, safe to mutate without affecting the store.
func (p *UserProfile) Clone() *UserProfile {
	cp := *p
	cp.Embedding = append([]float32(nil), p.Embedding...)
	cp.ExplicitPreferences = append([]string(nil), p.ExplicitPreferences...)
	cp.BlockedCategories = append([]string(nil), p.BlockedCategories...)
	return &cp
}

// Prefers reports whether the subject explicitly prefers the category.
func (p *UserProfile) Prefers(category string) bool {
	for _, c := range p.ExplicitPreferences {
		if c == category {
			return true
		}
	}
	return false
}

// Blocks reports whether the subject explicitly blocked the category.
func (p *UserProfile) Blocks(category string) bool {
	for _, c := range p.BlockedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package signal ingests user-behavior and explicit feedback, normalizing it
// into canonical FeedbackSignal records.
//
// The collector is the trust boundary for raw identifiers: subject tokens
// are pseudonymized with a keyed one-way hash before anything is persisted
// or published. High-confidence signals additionally trigger an immediate,
// best-effort profile update; everything else flows through the batch path
// on the event bus.
package signal

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current signal schema version. Increment on breaking
// changes to FeedbackSignal.
const SchemaVersion = 1

// Kind distinguishes behavioral from explicit feedback.
type Kind string

const (
	// KindImplicit covers behavioral events (clicks, dwell, completion).
	KindImplicit Kind = "implicit"
	// KindExplicit covers direct feedback (ratings, thumbs, saves).
	KindExplicit Kind = "explicit"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImplicit || k == KindExplicit
}

// RawSignal carries the observed behavior of one interaction. The collector
// reduces it to a single strength value; raw components are not persisted.
type RawSignal struct {
	// Clicked indicates the subject clicked through to the item.
	Clicked bool `json:"clicked,omitempty"`

	// EngagementSeconds is time spent on the item page.
	EngagementSeconds float64 `json:"engagement_seconds,omitempty"`

	// Refined indicates the subject refined a query to reach the item.
	Refined bool `json:"refined,omitempty"`

	// Completed indicates the subject finished the intended action
	// (followed the outbound link, saved the tool, finished the guide).
	Completed bool `json:"completed,omitempty"`

	// Rating is explicit feedback in [0,1]. Only read for KindExplicit.
	Rating float64 `json:"rating,omitempty"`
}

// Event is one feedback submission as received from the directory UI.
type Event struct {
	// SubjectToken is the caller-side subject identifier. It never leaves
	// the collector; signals carry its pseudonym instead.
	SubjectToken string `json:"subject_token" validate:"required,min=1,max=512"`

	// Kind is implicit or explicit.
	Kind Kind `json:"kind" validate:"required,oneof=implicit explicit"`

	// TargetID identifies the catalog item the feedback is about.
	TargetID string `json:"target_id" validate:"required,min=1,max=256"`

	// Raw is the observed behavior.
	Raw RawSignal `json:"raw_signal"`

	// Context carries request metadata (surface, category, locale).
	Context map[string]string `json:"context,omitempty" validate:"max=32,dive,keys,max=64,endkeys,max=256"`

	// Timestamp is when the interaction happened. Zero means "now".
	Timestamp time.Time `json:"timestamp,omitempty"`

	// IdempotencyKey deduplicates retried submissions. Resubmitting the
	// same key never double-counts.
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=1,max=128"`
}

// FeedbackSignal is the canonical, pseudonymized signal record.
type FeedbackSignal struct {
	SchemaVersion int `json:"schema_version"`

	// ID is a unique signal identifier.
	ID string `json:"id"`

	// SubjectID is the pseudonymous subject identifier.
	SubjectID string `json:"subject_id"`

	Kind     Kind   `json:"kind"`
	TargetID string `json:"target_id"`

	// Strength is the normalized signal strength, always in [0,1].
	Strength float64 `json:"strength"`

	Timestamp time.Time         `json:"timestamp"`
	Context   map[string]string `json:"context,omitempty"`

	// Archived is set once the signal has been aggregated; archived
	// signals are retained only until the retention window expires.
	Archived bool `json:"archived,omitempty"`
}

// NewFeedbackSignal creates a signal with a fresh ID and schema version.
// Strength is clamped to [0,1].
func NewFeedbackSignal(subjectID string, kind Kind, targetID string, strength float64, ts time.Time) *FeedbackSignal {
	return &FeedbackSignal{
		SchemaVersion: SchemaVersion,
		ID:            uuid.New().String(),
		SubjectID:     subjectID,
		Kind:          kind,
		TargetID:      targetID,
		Strength:      clamp01(strength),
		Timestamp:     ts.UTC(),
	}
}

// Clamp re-applies the strength invariant. Useful after decoding signals
// from external storage.
func (s *FeedbackSignal) Clamp() {
	s.Strength = clamp01(s.Strength)
}

// Marshal encodes the signal for the event bus and the append-only log.
func (s *FeedbackSignal) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSignal decodes a signal and re-applies invariants.
func UnmarshalSignal(data []byte) (*FeedbackSignal, error) {
	var s FeedbackSignal
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	s.Clamp()
	return &s, nil
}

// Ack acknowledges an accepted submission.
type Ack struct {
	// SignalID is the stored signal's ID. For duplicate submissions it is
	// the ID recorded for the original.
	SignalID string `json:"signal_id"`

	// Duplicate is true when the idempotency key was already seen.
	Duplicate bool `json:"duplicate"`
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

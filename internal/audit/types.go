// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package audit records operational lifecycle events for compliance and
// forensic analysis: model status transitions, experiment decisions, canary
// stage movements and rollbacks, privacy deferrals, and subject erasures.
package audit

import (
	"context"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// Model lifecycle events
	EventTypeModelDrafted  EventType = "model.drafted"
	EventTypeModelRejected EventType = "model.rejected"
	EventTypeModelActive   EventType = "model.activated"
	EventTypeModelRetired  EventType = "model.retired"

	// Experiment events
	EventTypeExperimentCreated  EventType = "experiment.created"
	EventTypeExperimentPromoted EventType = "experiment.promoted"
	EventTypeExperimentRejected EventType = "experiment.rejected"
	EventTypeExperimentClosed   EventType = "experiment.closed"

	// Canary events
	EventTypeCanaryStarted  EventType = "canary.started"
	EventTypeCanaryAdvanced EventType = "canary.stage_advanced"
	EventTypeCanaryRollback EventType = "canary.rolled_back"
	EventTypeCanaryComplete EventType = "canary.completed"

	// Privacy events
	EventTypePrivacyDeferred EventType = "privacy.batch_deferred"
	EventTypeSubjectErased   EventType = "privacy.subject_erased"

	// Ingestion events
	EventTypeSignalDeadLetter EventType = "signal.dead_lettered"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one recorded audit entry.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Severity of the event.
	Severity Severity `json:"severity"`

	// Outcome indicates success or failure.
	Outcome Outcome `json:"outcome"`

	// Subject of the action: a model version ID, experiment ID, or
	// pseudonymous subject ID depending on Type.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details carries structured context (stage percentages, metric
	// values, rejection reasons).
	Details map[string]string `json:"details,omitempty"`
}

// QueryFilter selects events from a Store.
type QueryFilter struct {
	Types    []EventType
	Since    time.Time
	Until    time.Time
	Subject  string
	Limit    int
}

// Store persists audit events.
type Store interface {
	// Save persists one event.
	Save(ctx context.Context, event *Event) error

	// Query returns events matching the filter, most recent first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases store resources.
	Close() error
}

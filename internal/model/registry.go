// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/logging"
)

// Registry owns model lifecycle state. Reads of the active version are
// lock-free snapshot loads; transitions serialize under one mutex so the
// single-active invariant can never be observed broken.
type Registry struct {
	store  Store
	logger zerolog.Logger

	// active holds a *Version snapshot, swapped whole on activation.
	active atomic.Pointer[Version]

	mu       sync.Mutex
	auditlog *audit.Logger
}

// NewRegistry creates a registry over the given store. Any version stored as
// active from a previous run is restored as the active snapshot.
func NewRegistry(ctx context.Context, store Store) (*Registry, error) {
	r := &Registry{
		store:  store,
		logger: logging.With("model-registry"),
	}

	versions, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore registry: %w", err)
	}
	for _, v := range versions {
		if v.Status == StatusActive {
			if r.active.Load() != nil {
				return nil, fmt.Errorf("store holds multiple active versions")
			}
			r.active.Store(v.Clone())
		}
	}
	return r, nil
}

// WithAudit wires audit logging for lifecycle transitions.
func (r *Registry) WithAudit(auditlog *audit.Logger) *Registry {
	r.auditlog = auditlog
	return r
}

// Register stores a new draft version.
func (r *Registry) Register(ctx context.Context, v *Version) error {
	if v.Status != StatusDraft {
		return &TransitionError{ID: v.ID, From: v.Status, To: StatusDraft}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Save(ctx, v); err != nil {
		return err
	}
	r.audit(ctx, audit.EventTypeModelDrafted, v.ID, "model version drafted")
	r.logger.Info().Str("version_id", v.ID).Msg("model version registered")
	return nil
}

// BeginCanary moves a draft into canary.
func (r *Registry) BeginCanary(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.transitionLocked(ctx, id, StatusCanary)
	if err != nil {
		return err
	}
	r.audit(ctx, audit.EventTypeCanaryStarted, v.ID, "model version entered canary")
	return nil
}

// Activate promotes a canary to active and retires the previously active
// version in the same critical section, preserving the single-active
// invariant. The new active snapshot becomes visible atomically.
func (r *Registry) Activate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.transitionLocked(ctx, id, StatusActive)
	if err != nil {
		return err
	}

	if prev := r.active.Load(); prev != nil && prev.ID != id {
		if _, err := r.transitionLocked(ctx, prev.ID, StatusRetired); err != nil {
			return fmt.Errorf("retire previous active %s: %w", prev.ID, err)
		}
		r.audit(ctx, audit.EventTypeModelRetired, prev.ID, "model version superseded")
	}

	r.active.Store(v.Clone())
	r.audit(ctx, audit.EventTypeModelActive, id, "model version activated")
	r.logger.Info().Str("version_id", id).Msg("model version activated")
	return nil
}

// Retire removes a canary from the lifecycle (rollback path). The active
// version is only retired by Activate, never directly.
func (r *Registry) Retire(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.active.Load(); cur != nil && cur.ID == id {
		return &TransitionError{ID: id, From: StatusActive, To: StatusRetired}
	}
	if _, err := r.transitionLocked(ctx, id, StatusRetired); err != nil {
		return err
	}
	r.audit(ctx, audit.EventTypeModelRetired, id, "model version retired")
	return nil
}

// Active returns an immutable snapshot of the active version, or false when
// no version is active.
func (r *Registry) Active() (*Version, bool) {
	v := r.active.Load()
	if v == nil {
		return nil, false
	}
	return v.Clone(), true
}

// Get returns a stored version by ID.
func (r *Registry) Get(ctx context.Context, id string) (*Version, error) {
	return r.store.Get(ctx, id)
}

// List returns every stored version.
func (r *Registry) List(ctx context.Context) ([]*Version, error) {
	return r.store.List(ctx)
}

// transitionLocked loads, validates, and persists one transition. Caller
// holds the mutex.
func (r *Registry) transitionLocked(ctx context.Context, id string, to Status) (*Version, error) {
	v, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(v.Status, to) {
		return nil, &TransitionError{ID: id, From: v.Status, To: to}
	}
	v.Status = to
	if err := r.store.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Registry) audit(ctx context.Context, typ audit.EventType, id, msg string) {
	if r.auditlog != nil {
		r.auditlog.Entry(ctx, typ, id, msg, nil)
	}
}

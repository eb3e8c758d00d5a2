// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package experiment

import (
	"sync"
	"time"

	"github.com/aitoolsdir/curator/internal/recommend"
)

// Router buckets serving traffic onto the variants of the experiment
// currently in flight and feeds every routed request's outcome back into
// the manager's per-variant accumulators. At most one experiment serves at
// a time; Begin replaces the previous one.
type Router struct {
	manager *Manager

	mu           sync.RWMutex
	experimentID string
	versions     map[string]string // variant -> model version ID
}

// NewRouter creates a serving router for the manager's experiments.
func NewRouter(manager *Manager) *Router {
	return &Router{manager: manager}
}

// Begin starts routing traffic for an experiment. versions maps variant
// names to the model versions they serve.
func (r *Router) Begin(experimentID string, versions map[string]string) {
	cp := make(map[string]string, len(versions))
	for k, v := range versions {
		cp[k] = v
	}
	r.mu.Lock()
	r.experimentID = experimentID
	r.versions = cp
	r.mu.Unlock()
}

// End stops routing. In-flight outcomes for the ended experiment are
// dropped by the manager once it closes.
func (r *Router) End() {
	r.mu.Lock()
	r.experimentID = ""
	r.versions = nil
	r.mu.Unlock()
}

// Route assigns the subject to a variant and serves that variant's version.
// Control subjects are routed too: their outcomes are the baseline the
// treatment is judged against.
func (r *Router) Route(subjectID string) (recommend.Routed, bool) {
	r.mu.RLock()
	id := r.experimentID
	versions := r.versions
	r.mu.RUnlock()
	if id == "" {
		return recommend.Routed{}, false
	}

	variant, err := r.manager.Assign(id, subjectID)
	if err != nil {
		return recommend.Routed{}, false
	}
	return recommend.Routed{VersionID: versions[variant], Tag: variant}, true
}

// Outcome records one routed request against its variant. A degraded
// request scores zero on the success metric and counts as errored for the
// guardrails.
func (r *Router) Outcome(routed recommend.Routed, degraded bool, latency time.Duration) {
	r.mu.RLock()
	id := r.experimentID
	r.mu.RUnlock()
	if id == "" {
		return
	}

	value := 1.0
	if degraded {
		value = 0
	}
	// Late outcomes for a closed experiment fail here; nothing to do.
	_ = r.manager.RecordOutcome(id, routed.Tag, value, degraded, latency)
}

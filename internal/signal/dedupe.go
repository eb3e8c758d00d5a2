// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

import (
	"sync"
	"time"
)

// dedupeEntry remembers the signal ID recorded for an idempotency key.
type dedupeEntry struct {
	signalID  string
	expiresAt time.Time
}

// Deduper tracks idempotency keys for a bounded TTL so that resubmitted
// events acknowledge the original signal instead of double-counting.
// Safe for concurrent use.
type Deduper struct {
	mu      sync.Mutex
	entries map[string]dedupeEntry
	ttl     time.Duration

	// lastPrune throttles full-map sweeps to at most one per ttl/4.
	lastPrune time.Time

	now func() time.Time
}

// NewDeduper creates a deduper remembering keys for ttl.
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{
		entries: make(map[string]dedupeEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Seen records key -> signalID if the key is new, returning the previously
// recorded signal ID and true when the key was already present.
func (d *Deduper) Seen(key, signalID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.maybePrune(now)

	if e, ok := d.entries[key]; ok && now.Before(e.expiresAt) {
		return e.signalID, true
	}
	d.entries[key] = dedupeEntry{signalID: signalID, expiresAt: now.Add(d.ttl)}
	return signalID, false
}

// Forget drops a key, but only if it still maps to signalID. Used to roll
// back a reservation when persistence fails after Seen.
func (d *Deduper) Forget(key, signalID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[key]; ok && e.signalID == signalID {
		delete(d.entries, key)
	}
}

// Len returns the number of tracked keys, counting expired entries that
// have not been pruned yet.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// maybePrune drops expired entries. Called with the lock held.
func (d *Deduper) maybePrune(now time.Time) {
	if now.Sub(d.lastPrune) < d.ttl/4 {
		return
	}
	d.lastPrune = now
	for k, e := range d.entries {
		if !now.Before(e.expiresAt) {
			delete(d.entries, k)
		}
	}
}

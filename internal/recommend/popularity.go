// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package recommend

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Popularity tracks exponentially decayed interaction counts per item. It
// feeds both the learned scorer's popularity feature and the non-personalized
// fallback ranking.
type Popularity struct {
	mu       sync.Mutex
	counts   map[string]float64
	halfLife time.Duration
	last     time.Time

	now func() time.Time
}

// NewPopularity creates a tracker with the given decay half-life.
func NewPopularity(halfLife time.Duration) *Popularity {
	if halfLife <= 0 {
		halfLife = 7 * 24 * time.Hour
	}
	now := time.Now
	return &Popularity{
		counts:   make(map[string]float64),
		halfLife: halfLife,
		last:     now(),
		now:      now,
	}
}

// Record adds weight to an item's decayed count.
func (p *Popularity) Record(itemID string, weight float64) {
	if weight <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decayLocked()
	p.counts[itemID] += weight
}

// Score returns the item's popularity normalized against the current
// maximum, in [0,1]. Reads do not apply decay: decay multiplies every count
// by the same factor, which leaves the normalized ratio unchanged, and
// deferring it to Record keeps repeated reads byte-identical.
func (p *Popularity) Score(itemID string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	max := 0.0
	for _, c := range p.counts {
		if c > max {
			max = c
		}
	}
	if max == 0 {
		return 0
	}
	return p.counts[itemID] / max
}

// Top returns the n most popular item IDs, count descending with ID as the
// deterministic tie-break.
func (p *Popularity) Top(n int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	type entry struct {
		id    string
		count float64
	}
	entries := make([]entry, 0, len(p.counts))
	for id, c := range p.counts {
		entries = append(entries, entry{id, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].id < entries[j].id
	})
	if n < len(entries) {
		entries = entries[:n]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// decayLocked applies the elapsed exponential decay. Caller holds the lock.
func (p *Popularity) decayLocked() {
	now := p.now()
	elapsed := now.Sub(p.last)
	if elapsed <= 0 {
		return
	}
	p.last = now

	factor := math.Exp2(-float64(elapsed) / float64(p.halfLife))
	for id, c := range p.counts {
		c *= factor
		if c < 1e-6 {
			delete(p.counts, id)
			continue
		}
		p.counts[id] = c
	}
}

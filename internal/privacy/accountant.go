// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package privacy

import (
	"sync"
	"time"

	"github.com/aitoolsdir/curator/internal/metrics"
)

// Accountant tracks the epsilon budget available within one window. Spending
// past the budget is refused; the window refills on a fixed schedule.
type Accountant struct {
	mu        sync.Mutex
	budget    float64
	remaining float64
	window    time.Duration
	refilled  time.Time

	now func() time.Time
}

// NewAccountant creates an accountant with the given per-window budget.
func NewAccountant(budget float64, window time.Duration) *Accountant {
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now
	return &Accountant{
		budget:    budget,
		remaining: budget,
		window:    window,
		refilled:  now(),
		now:       now,
	}
}

// Spend consumes epsilon from the window budget. It is all-or-nothing: when
// the remaining budget cannot cover the full cost, nothing is spent and
// Spend returns false.
func (a *Accountant) Spend(epsilon float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maybeRefill()

	if epsilon > a.remaining {
		return false
	}
	a.remaining -= epsilon
	metrics.PrivacyBudgetSpent.Add(epsilon)
	return true
}

// Remaining returns the unspent budget in the current window.
func (a *Accountant) Remaining() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maybeRefill()
	return a.remaining
}

// maybeRefill resets the budget once the window has elapsed. Caller holds
// the lock.
func (a *Accountant) maybeRefill() {
	now := a.now()
	if now.Sub(a.refilled) >= a.window {
		a.remaining = a.budget
		a.refilled = now
	}
}

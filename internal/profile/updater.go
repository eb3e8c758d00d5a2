// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aitoolsdir/curator/internal/metrics"
)

// Updater applies incremental interaction updates to profiles with
// optimistic versioning: conflicting concurrent writes are detected by the
// store and retried with jittered backoff, never lost.
type Updater struct {
	store Store

	// maxAttempts bounds the conflict retry loop.
	maxAttempts int

	// baseRate scales how far one interaction moves the embedding.
	baseRate float64

	// activityDecay discounts the activity counter per update.
	activityDecay float64

	backoffBase time.Duration
}

// NewUpdater creates an updater writing to store.
func NewUpdater(store Store) *Updater {
	return &Updater{
		store:         store,
		maxAttempts:   5,
		baseRate:      0.2,
		activityDecay: 0.995,
		backoffBase:   2 * time.Millisecond,
	}
}

// ApplyInteraction folds one interaction with an item into the subject's
// profile: the embedding moves toward the item vector proportionally to
// signal strength, damped as the subject's history grows. A missing profile
// is created from the item vector itself.
func (u *Updater) ApplyInteraction(ctx context.Context, subjectID string, itemVec []float32, strength float64) error {
	if len(itemVec) == 0 {
		return errors.New("empty item vector")
	}

	var lastErr error
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		p, err := u.store.Get(ctx, subjectID)
		if errors.Is(err, ErrNotFound) {
			p = &UserProfile{
				SubjectID: subjectID,
				Embedding: append([]float32(nil), itemVec...),
			}
		} else if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}

		if len(p.Embedding) != len(itemVec) {
			return fmt.Errorf("dimension mismatch: profile %d, item %d", len(p.Embedding), len(itemVec))
		}

		u.fold(p, itemVec, strength)
		p.UpdatedAt = time.Now().UTC()

		err = u.store.Put(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("store profile: %w", err)
		}

		metrics.ProfileWriteConflicts.Inc()
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.backoff(attempt)):
		}
	}
	return fmt.Errorf("profile update for %s gave up after %d attempts: %w", subjectID, u.maxAttempts, lastErr)
}

// fold moves the embedding toward the item vector. The step size shrinks
// with accumulated activity so established profiles drift slowly.
func (u *Updater) fold(p *UserProfile, itemVec []float32, strength float64) {
	damping := 1.0 / (1.0 + math.Log1p(p.ActivityLevel))
	alpha := u.baseRate * strength * damping

	var norm float64
	for i := range p.Embedding {
		v := float64(p.Embedding[i])*(1-alpha) + float64(itemVec[i])*alpha
		p.Embedding[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i := range p.Embedding {
			p.Embedding[i] = float32(float64(p.Embedding[i]) * inv)
		}
	}

	p.ActivityLevel = p.ActivityLevel*u.activityDecay + strength
}

// backoff returns an exponentially growing delay with jitter.
func (u *Updater) backoff(attempt int) time.Duration {
	base := u.backoffBase << uint(attempt)
	jitter := time.Duration(rand.Int63n(int64(base))) //nolint:gosec // jitter needs no crypto strength
	return base + jitter
}

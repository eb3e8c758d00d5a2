// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package profile

import (
	"context"
	"math"
	"sync"
	"testing"
)

func TestApplyInteractionCreatesProfile(t *testing.T) {
	store := NewMemoryStore()
	u := NewUpdater(store)

	err := u.ApplyInteraction(context.Background(), "new-subject", []float32{0, 1, 0}, 0.9)
	if err != nil {
		t.Fatalf("ApplyInteraction() error: %v", err)
	}

	p, err := store.Get(context.Background(), "new-subject")
	if err != nil {
		t.Fatal(err)
	}
	if p.ActivityLevel <= 0 {
		t.Error("activity level not incremented")
	}
	if p.Embedding[1] <= p.Embedding[0] {
		t.Errorf("embedding did not move toward item vector: %v", p.Embedding)
	}
}

func TestApplyInteractionMovesTowardItem(t *testing.T) {
	store := NewMemoryStore()
	u := NewUpdater(store)
	ctx := context.Background()

	seed := &UserProfile{SubjectID: "s", Embedding: []float32{1, 0}}
	if err := store.Put(ctx, seed); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		if err := u.ApplyInteraction(ctx, "s", []float32{0, 1}, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	p, _ := store.Get(ctx, "s")
	if p.Embedding[1] <= p.Embedding[0] {
		t.Errorf("repeated interactions did not shift the embedding: %v", p.Embedding)
	}

	// The embedding stays unit-normalized.
	var norm float64
	for _, v := range p.Embedding {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-3 {
		t.Errorf("embedding norm = %f, want ~1", norm)
	}
}

func TestApplyInteractionDimensionMismatch(t *testing.T) {
	store := NewMemoryStore()
	u := NewUpdater(store)
	ctx := context.Background()

	seed := &UserProfile{SubjectID: "s", Embedding: []float32{1, 0}}
	if err := store.Put(ctx, seed); err != nil {
		t.Fatal(err)
	}
	if err := u.ApplyInteraction(ctx, "s", []float32{1, 2, 3}, 0.5); err == nil {
		t.Error("dimension mismatch accepted")
	}
}

func TestConcurrentUpdatesNotLost(t *testing.T) {
	store := NewMemoryStore()
	u := NewUpdater(store)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = u.ApplyInteraction(ctx, "shared", []float32{0.5, 0.5}, 0.8)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: %v", i, err)
		}
	}

	p, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	// Every successful write bumps the version exactly once.
	if p.Version != writers {
		t.Errorf("version = %d, want %d (no lost updates)", p.Version, writers)
	}
}

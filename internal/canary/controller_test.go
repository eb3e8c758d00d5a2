// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package canary

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/model"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.DwellPerStage = 30 * time.Millisecond
	cfg.CheckInterval = 2 * time.Millisecond
	cfg.MinRequests = 1
	return cfg
}

func newFixture(t *testing.T) (*model.Registry, *model.Version) {
	t.Helper()
	ctx := context.Background()
	registry, err := model.NewRegistry(ctx, model.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	draft := model.NewVersion(model.DefaultWeights(), "idx-1")
	if err := registry.Register(ctx, draft); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return registry, draft
}

func TestRolloutPromotesHealthyVersion(t *testing.T) {
	registry, draft := newFixture(t)
	healthy := HealthFunc(func() Health {
		return Health{Requests: 100, ErrorRate: 0.01, MeanLatency: 20 * time.Millisecond}
	})
	c := NewController(fastConfig(), registry, healthy, nil)

	if err := c.Rollout(context.Background(), draft.ID); err != nil {
		t.Fatalf("Rollout() error = %v", err)
	}

	active, ok := registry.Active()
	if !ok || active.ID != draft.ID {
		t.Fatalf("active version = %v, want %s", active, draft.ID)
	}
	if v, pct := c.Current(); v != "" || pct != 0 {
		t.Errorf("Current() = (%q, %d) after completed rollout, want idle", v, pct)
	}
}

func TestRolloutRollsBackOnGuardrailBreach(t *testing.T) {
	registry, draft := newFixture(t)
	store := audit.NewMemoryStore(0)
	auditlog := audit.NewLogger(store, 16, false)

	// Healthy at 5%, degraded once the rollout reaches 25%.
	var ctrl *Controller
	source := HealthFunc(func() Health {
		if _, pct := ctrl.Current(); pct >= 25 {
			return Health{Requests: 100, ErrorRate: 0.3, MeanLatency: 20 * time.Millisecond}
		}
		return Health{Requests: 100, ErrorRate: 0.01, MeanLatency: 20 * time.Millisecond}
	})
	ctrl = NewController(fastConfig(), registry, source, auditlog)

	err := ctrl.Rollout(context.Background(), draft.ID)
	var rb *RollbackError
	if !errors.As(err, &rb) {
		t.Fatalf("Rollout() error = %v, want RollbackError", err)
	}
	if rb.Stage != 25 || rb.Guardrail != "error_rate" {
		t.Errorf("rollback = stage %d guardrail %s, want 25 error_rate", rb.Stage, rb.Guardrail)
	}

	got, err := registry.Get(context.Background(), draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusRetired {
		t.Errorf("rolled-back version status = %q, want retired", got.Status)
	}
	if _, ok := registry.Active(); ok {
		t.Error("rollback activated a version")
	}

	auditlog.Close()
	events, err := store.Query(context.Background(), audit.QueryFilter{
		Types: []audit.EventType{audit.EventTypeCanaryRollback},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d rollback audit events, want 1", len(events))
	}
	if events[0].Subject != draft.ID || events[0].Details["stage"] != "25" {
		t.Errorf("rollback audit event = %+v", events[0])
	}
}

func TestRolloutLatencyGuardrail(t *testing.T) {
	registry, draft := newFixture(t)
	slow := HealthFunc(func() Health {
		return Health{Requests: 100, ErrorRate: 0.0, MeanLatency: 2 * time.Second}
	})
	c := NewController(fastConfig(), registry, slow, nil)

	err := c.Rollout(context.Background(), draft.ID)
	var rb *RollbackError
	if !errors.As(err, &rb) {
		t.Fatalf("Rollout() error = %v, want RollbackError", err)
	}
	if rb.Guardrail != "latency" || rb.Stage != 5 {
		t.Errorf("rollback = stage %d guardrail %s, want 5 latency", rb.Stage, rb.Guardrail)
	}
}

func TestRolloutThinTrafficIsNotJudged(t *testing.T) {
	registry, draft := newFixture(t)
	cfg := fastConfig()
	cfg.MinRequests = 50

	// Terrible numbers, but too few requests to trust.
	thin := HealthFunc(func() Health {
		return Health{Requests: 3, ErrorRate: 1.0, MeanLatency: time.Hour}
	})
	c := NewController(cfg, registry, thin, nil)

	if err := c.Rollout(context.Background(), draft.ID); err != nil {
		t.Fatalf("Rollout() error = %v", err)
	}
	if active, ok := registry.Active(); !ok || active.ID != draft.ID {
		t.Error("thin-traffic rollout did not complete")
	}
}

func TestRolloutCancellationRollsBack(t *testing.T) {
	registry, draft := newFixture(t)
	cfg := fastConfig()
	cfg.DwellPerStage = 10 * time.Second // cancellation must cut this short

	healthy := HealthFunc(func() Health {
		return Health{Requests: 100, ErrorRate: 0.0, MeanLatency: time.Millisecond}
	})
	c := NewController(cfg, registry, healthy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Rollout(ctx, draft.ID) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Rollout() error = %v, want context.Canceled", err)
	}
	got, err := registry.Get(context.Background(), draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusRetired {
		t.Errorf("cancelled version status = %q, want retired", got.Status)
	}
}

func TestRolloutRefusesConcurrentRollouts(t *testing.T) {
	registry, draft := newFixture(t)
	second := model.NewVersion(model.DefaultWeights(), "idx-2")
	if err := registry.Register(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int64
	healthy := HealthFunc(func() Health {
		calls.Add(1)
		return Health{Requests: 100, ErrorRate: 0.0, MeanLatency: time.Millisecond}
	})
	c := NewController(fastConfig(), registry, healthy, nil)

	done := make(chan error, 1)
	go func() { done <- c.Rollout(context.Background(), draft.ID) }()

	// Wait for the first rollout to be observably in flight.
	deadline := time.After(time.Second)
	for {
		if _, pct := c.Current(); pct > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first rollout never started")
		case <-time.After(time.Millisecond):
		}
	}

	if err := c.Rollout(context.Background(), second.ID); err == nil {
		t.Error("second concurrent Rollout() succeeded")
	}
	if err := <-done; err != nil {
		t.Fatalf("first Rollout() error = %v", err)
	}
}

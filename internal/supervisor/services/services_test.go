// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/experiment"
	"github.com/aitoolsdir/curator/internal/model"
	"github.com/aitoolsdir/curator/internal/privacy"
	"github.com/aitoolsdir/curator/internal/recommend"
	"github.com/aitoolsdir/curator/internal/signal"
)

func TestBatchQueueBounded(t *testing.T) {
	q := NewBatchQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(&aggregate.Batch{ID: fmt.Sprintf("b%d", i)})
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	// Oldest evicted first.
	got := q.Drain()
	if got[0].ID != "b2" || got[2].ID != "b4" {
		t.Errorf("drained %s..%s, want b2..b4", got[0].ID, got[2].ID)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after drain, want 0", q.Len())
	}
}

type stubPipeline struct {
	mu   sync.Mutex
	runs [][]*aggregate.Batch
	err  error
}

func (p *stubPipeline) Run(_ context.Context, batches []*aggregate.Batch) (*model.Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, batches)
	if p.err != nil {
		return nil, p.err
	}
	return model.NewVersion(model.DefaultWeights(), "idx"), nil
}

func trainingBatch(id string) *aggregate.Batch {
	return &aggregate.Batch{
		ID: id,
		Groups: []aggregate.AggregatedSignal{{
			Key:            aggregate.GroupKey{Kind: signal.KindImplicit, TargetID: "tool-a"},
			Count:          5,
			AvgStrength:    0.8,
			ConsensusLevel: 0.9,
			SubjectIDs:     []string{"s1", "s2"},
		}},
		SignalIDs:   []string{"sig-1", "sig-2"},
		SignalCount: 5,
		Confidence:  0.9,
	}
}

func TestTrainingServicePrivatizesAndRuns(t *testing.T) {
	queue := NewBatchQueue(0)
	queue.Push(trainingBatch("b1"))

	processor := privacy.NewProcessor(privacy.DefaultConfig(), privacy.NewAccountant(100, time.Hour))
	pipeline := &stubPipeline{}
	svc := NewTrainingService(queue, processor, pipeline, nil, time.Hour)

	svc.runOnce(context.Background())

	if len(pipeline.runs) != 1 || len(pipeline.runs[0]) != 1 {
		t.Fatalf("pipeline runs = %v, want one run over one batch", pipeline.runs)
	}
	// The pipeline must see the privatized copy, not the raw batch.
	if got := pipeline.runs[0][0]; len(got.SignalIDs) != 0 || got.Groups[0].SubjectIDs[0] == "s1" {
		t.Error("pipeline received a non-privatized batch")
	}
	if queue.Len() != 0 {
		t.Errorf("queue holds %d batches after run, want 0", queue.Len())
	}
}

func TestTrainingServiceDefersOnExhaustedBudget(t *testing.T) {
	queue := NewBatchQueue(0)
	queue.Push(trainingBatch("b1"))
	queue.Push(trainingBatch("b2"))

	// Budget covers exactly one single-group batch per window.
	processor := privacy.NewProcessor(privacy.DefaultConfig(), privacy.NewAccountant(1.5, time.Hour))
	pipeline := &stubPipeline{}
	svc := NewTrainingService(queue, processor, pipeline, nil, time.Hour)

	svc.runOnce(context.Background())

	if len(pipeline.runs) != 1 || len(pipeline.runs[0]) != 1 {
		t.Fatalf("pipeline runs = %d, want one run over the affordable batch", len(pipeline.runs))
	}
	if queue.Len() != 1 {
		t.Fatalf("queue holds %d batches, want the deferred one", queue.Len())
	}
	if deferred := queue.Drain(); deferred[0].ID != "b2" {
		t.Errorf("deferred batch = %s, want b2", deferred[0].ID)
	}
}

func TestTrainingServiceEmptyQueueIsNoop(t *testing.T) {
	pipeline := &stubPipeline{}
	svc := NewTrainingService(NewBatchQueue(0),
		privacy.NewProcessor(privacy.DefaultConfig(), privacy.NewAccountant(100, time.Hour)),
		pipeline, nil, time.Hour)

	svc.runOnce(context.Background())
	if len(pipeline.runs) != 0 {
		t.Errorf("pipeline ran on an empty queue")
	}
}

type countingFlusher struct {
	calls atomic.Int64
}

func (f *countingFlusher) Flush(context.Context) error {
	f.calls.Add(1)
	return nil
}

func TestFlushServiceTicksAndFinalFlush(t *testing.T) {
	flusher := &countingFlusher{}
	svc := NewFlushService(flusher, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}

	// Several ticks plus the shutdown flush.
	if n := flusher.calls.Load(); n < 2 {
		t.Errorf("flush calls = %d, want at least 2", n)
	}
}

type stubRollouter struct {
	mu    sync.Mutex
	seen  []string
	errFn func(versionID string) error
}

func (r *stubRollouter) Rollout(_ context.Context, versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, versionID)
	if r.errFn != nil {
		return r.errFn(versionID)
	}
	return nil
}

func TestCanaryServiceConsumesDrafts(t *testing.T) {
	drafts := make(chan string, 2)
	roller := &stubRollouter{}
	svc := NewCanaryService(roller, drafts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	drafts <- "v1"
	drafts <- "v2"

	deadline := time.After(time.Second)
	for {
		roller.mu.Lock()
		n := len(roller.seen)
		roller.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("rollouts never ran")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}

	if roller.seen[0] != "v1" || roller.seen[1] != "v2" {
		t.Errorf("rollout order = %v, want [v1 v2]", roller.seen)
	}
}

func newServiceRegistry(t *testing.T) *model.Registry {
	t.Helper()
	registry, err := model.NewRegistry(context.Background(), model.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func TestExperimentServiceFirstDraftSkipsEvaluation(t *testing.T) {
	ctx := context.Background()
	registry := newServiceRegistry(t)
	draft := model.NewVersion(model.DefaultWeights(), "idx-1")
	if err := registry.Register(ctx, draft); err != nil {
		t.Fatal(err)
	}

	manager := experiment.NewManager(experiment.DefaultConfig(), nil)
	router := experiment.NewRouter(manager)
	rollouts := make(chan string, 1)
	svc := NewExperimentService(manager, router, registry, make(chan string), rollouts, time.Millisecond, 10)

	if err := svc.evaluate(ctx, draft.ID); err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	select {
	case id := <-rollouts:
		if id != draft.ID {
			t.Errorf("rollout received %s, want %s", id, draft.ID)
		}
	default:
		t.Fatal("first draft with no active model was not handed to rollout")
	}
}

func experimentFixture(t *testing.T) (*model.Registry, *model.Version, *experiment.Manager, *experiment.Router) {
	t.Helper()
	ctx := context.Background()
	registry := newServiceRegistry(t)

	active := model.NewVersion(model.DefaultWeights(), "idx-active")
	if err := registry.Register(ctx, active); err != nil {
		t.Fatal(err)
	}
	if err := registry.BeginCanary(ctx, active.ID); err != nil {
		t.Fatal(err)
	}
	if err := registry.Activate(ctx, active.ID); err != nil {
		t.Fatal(err)
	}
	draft := model.NewVersion(model.DefaultWeights(), "idx-draft")
	if err := registry.Register(ctx, draft); err != nil {
		t.Fatal(err)
	}

	cfg := experiment.DefaultConfig()
	cfg.MinSampleSize = 50
	manager := experiment.NewManager(cfg, nil)
	return registry, draft, manager, experiment.NewRouter(manager)
}

// pumpOutcomes feeds the router until the evaluation decides, alternating
// clean treatment traffic against a struggling control (or the reverse).
func pumpOutcomes(t *testing.T, router *experiment.Router, done <-chan error, treatmentWins bool) error {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for i := 0; ; i++ {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("evaluation never decided")
		default:
		}
		goodTreatment := i%10 != 0
		if !treatmentWins {
			goodTreatment = !goodTreatment
		}
		router.Outcome(recommend.Routed{Tag: experiment.ControlVariant}, goodTreatment, 10*time.Millisecond)
		router.Outcome(recommend.Routed{Tag: TreatmentVariant}, !goodTreatment, 10*time.Millisecond)
		time.Sleep(100 * time.Microsecond)
	}
}

func TestExperimentServicePromotesWinningDraft(t *testing.T) {
	ctx := context.Background()
	registry, draft, manager, router := experimentFixture(t)
	rollouts := make(chan string, 1)
	svc := NewExperimentService(manager, router, registry, make(chan string), rollouts, 5*time.Millisecond, 10)

	done := make(chan error, 1)
	go func() { done <- svc.evaluate(ctx, draft.ID) }()

	if err := pumpOutcomes(t, router, done, true); err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	select {
	case id := <-rollouts:
		if id != draft.ID {
			t.Errorf("rollout received %s, want %s", id, draft.ID)
		}
	default:
		t.Fatal("promoted draft never reached the rollout queue")
	}
}

func TestExperimentServiceRetiresLosingDraft(t *testing.T) {
	ctx := context.Background()
	registry, draft, manager, router := experimentFixture(t)
	rollouts := make(chan string, 1)
	svc := NewExperimentService(manager, router, registry, make(chan string), rollouts, 5*time.Millisecond, 10)

	done := make(chan error, 1)
	go func() { done <- svc.evaluate(ctx, draft.ID) }()

	if err := pumpOutcomes(t, router, done, false); err != nil {
		t.Fatalf("evaluate() error = %v", err)
	}
	select {
	case id := <-rollouts:
		t.Fatalf("rejected draft %s reached the rollout queue", id)
	default:
	}
	got, err := registry.Get(ctx, draft.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusRetired {
		t.Errorf("rejected draft status = %q, want retired", got.Status)
	}
}

type stubServer struct {
	started  chan struct{}
	shutdown atomic.Bool
	block    chan struct{}
}

func (s *stubServer) ListenAndServe() error {
	close(s.started)
	<-s.block
	return nil
}

func (s *stubServer) Shutdown(context.Context) error {
	s.shutdown.Store(true)
	close(s.block)
	return nil
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := &stubServer{started: make(chan struct{}), block: make(chan struct{})}
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}
	if !server.shutdown.Load() {
		t.Error("server was not shut down gracefully")
	}
}

type stubPurger struct {
	calls atomic.Int64
}

func (p *stubPurger) PurgeArchivedBefore(_ context.Context, _ time.Time) (int, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestSweepServiceRunsOnCadence(t *testing.T) {
	purger := &stubPurger{}
	svc := NewSweepService(purger, time.Hour, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}
	if purger.calls.Load() < 2 {
		t.Errorf("purge calls = %d, want at least 2", purger.calls.Load())
	}
}

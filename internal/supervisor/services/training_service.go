// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/learning"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/model"
	"github.com/aitoolsdir/curator/internal/privacy"
)

// BatchQueue buffers aggregated batches between the window flusher and the
// training scheduler. Bounded: when full, the oldest batch is dropped so a
// stalled trainer cannot grow memory without limit.
type BatchQueue struct {
	mu      sync.Mutex
	batches []*aggregate.Batch
	max     int
}

// NewBatchQueue creates a queue holding at most max batches.
func NewBatchQueue(max int) *BatchQueue {
	if max <= 0 {
		max = 256
	}
	return &BatchQueue{max: max}
}

// Push appends a batch, evicting the oldest when full.
func (q *BatchQueue) Push(b *aggregate.Batch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) >= q.max {
		q.batches = q.batches[1:]
	}
	q.batches = append(q.batches, b)
}

// Drain removes and returns all queued batches.
func (q *BatchQueue) Drain() []*aggregate.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.batches
	q.batches = nil
	return out
}

// Len returns the queued batch count.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// PipelineRunner matches the learning pipeline's run surface.
type PipelineRunner interface {
	Run(ctx context.Context, batches []*aggregate.Batch) (*model.Version, error)
}

// TrainingService drives scheduled training runs: it drains queued raw
// batches, applies differential privacy, and feeds the privatized batches
// through the learning pipeline. Budget-exhausted batches go back on the
// queue and retry once the privacy window refills.
type TrainingService struct {
	queue     *BatchQueue
	processor *privacy.Processor
	pipeline  PipelineRunner
	auditlog  *audit.Logger
	interval  time.Duration
	logger    zerolog.Logger
}

// NewTrainingService creates the training scheduler. auditlog may be nil.
func NewTrainingService(queue *BatchQueue, processor *privacy.Processor, pipeline PipelineRunner, auditlog *audit.Logger, interval time.Duration) *TrainingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &TrainingService{
		queue:     queue,
		processor: processor,
		pipeline:  pipeline,
		auditlog:  auditlog,
		interval:  interval,
		logger:    logging.With("training-service"),
	}
}

// Serve implements suture.Service.
func (s *TrainingService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce privatizes whatever the queue holds and runs one pipeline pass.
func (s *TrainingService) runOnce(ctx context.Context) {
	raw := s.queue.Drain()
	if len(raw) == 0 {
		return
	}

	var privatized []*aggregate.Batch
	for _, b := range raw {
		out, err := s.processor.Process(ctx, b)
		switch {
		case err == nil:
			privatized = append(privatized, out)
		case errors.Is(err, privacy.ErrBudgetExhausted):
			// Never train on under-protected data: the batch waits for
			// the next budget window.
			s.queue.Push(b)
			if s.auditlog != nil {
				s.auditlog.Entry(ctx, audit.EventTypePrivacyDeferred, b.ID,
					"batch deferred until privacy budget refills", nil)
			}
			s.logger.Info().Str("batch_id", b.ID).Msg("privacy budget exhausted, batch deferred")
		default:
			s.logger.Error().Err(err).Str("batch_id", b.ID).Msg("privacy processing failed, batch dropped")
		}
	}
	if len(privatized) == 0 {
		return
	}

	candidate, err := s.pipeline.Run(ctx, privatized)
	var abort *learning.StageAbortError
	var reject *learning.ModelValidationError
	switch {
	case err == nil:
		s.logger.Info().Str("version_id", candidate.ID).Msg("training produced candidate")
	case errors.As(err, &abort):
		s.logger.Info().Str("stage", abort.Stage).Float64("confidence", abort.Confidence).
			Msg("training aborted on low confidence")
	case errors.As(err, &reject):
		s.logger.Warn().Str("version_id", reject.VersionID).Float64("accuracy", reject.Accuracy).
			Msg("candidate rejected by validation gate")
	default:
		s.logger.Error().Err(err).Msg("training run failed")
	}
}

func (s *TrainingService) String() string { return "training-scheduler" }

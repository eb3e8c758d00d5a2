// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package learning turns privatized aggregate batches into candidate ranking
// models through a strictly ordered stage sequence: aggregation, filtering,
// extraction, model update, validation, deployment. Each stage reports a
// confidence; a run aborts as soon as any stage falls below the floor, and
// an aborted or rejected run never touches the active model.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
	"github.com/aitoolsdir/curator/internal/model"
)

// ErrNoInput is returned for a run with no batches.
var ErrNoInput = errors.New("no batches to train on")

// StageAbortError reports a run aborted by a stage confidence below floor.
type StageAbortError struct {
	Stage      string
	Confidence float64
}

func (e *StageAbortError) Error() string {
	return fmt.Sprintf("pipeline aborted at stage %s: confidence %.3f below floor", e.Stage, e.Confidence)
}

// ModelValidationError reports a candidate that failed the held-out quality
// gate. The previously active version is retained.
type ModelValidationError struct {
	VersionID string
	Accuracy  float64
	Threshold float64
}

func (e *ModelValidationError) Error() string {
	return fmt.Sprintf("candidate %s rejected: accuracy %.3f below %.3f", e.VersionID, e.Accuracy, e.Threshold)
}

// Config tunes the pipeline.
type Config struct {
	// MinBatchSize is the minimum total signal count to train on.
	MinBatchSize int

	// StageConfidence is the per-stage abort floor.
	StageConfidence float64

	// ValidationAccuracy is the held-out accuracy gate.
	ValidationAccuracy float64

	// BaseLearningRate anchors the adaptive schedule.
	BaseLearningRate float64

	// MinConsensus drops groups that disagree too much during filtering.
	MinConsensus float64

	// PersonalizationDim is the length of the fine-tuned adjustment vector.
	PersonalizationDim int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MinBatchSize:       10,
		StageConfidence:    0.3,
		ValidationAccuracy: 0.8,
		BaseLearningRate:   0.05,
		MinConsensus:       0.4,
		PersonalizationDim: 8,
	}
}

// Example is one training observation extracted from an aggregate group.
type Example struct {
	TargetID string
	Strength float64

	// Weight reflects how much evidence backs the observation.
	Weight float64
}

// State flows through the stages; each stage consumes what the prior one
// produced.
type State struct {
	Batches []*aggregate.Batch

	// Groups is the merged group list (aggregation stage).
	Groups []aggregate.AggregatedSignal

	// BatchSize is the total surviving signal count.
	BatchSize int

	// Examples are the extracted training observations.
	Examples []Example

	// Volatility measures drift of this batch's engagement against recent
	// runs; LearningRate is derived from it and the batch size.
	Volatility   float64
	LearningRate float64

	// Candidate is the updated model (model-update stage onward).
	Candidate *model.Version

	// Accuracy is the held-out validation result.
	Accuracy float64
}

// Stage is one step of the pipeline. Process consumes and extends the run
// state and reports a confidence in [0,1].
type Stage interface {
	Name() string
	Process(ctx context.Context, s *State) (float64, error)
}

// DraftHandler receives validated candidates. Deployment hands drafts to the
// experiment manager this way; it never touches live traffic itself.
type DraftHandler func(ctx context.Context, v *model.Version) error

// Pipeline owns the ordered stages. Runs are serialized: overlapping
// triggers wait, they never run concurrently.
type Pipeline struct {
	cfg      Config
	registry *model.Registry
	stages   []Stage
	logger   zerolog.Logger

	mu sync.Mutex

	// engagementEMA tracks recent batch engagement for the volatility term.
	engagementEMA float64
	emaPrimed     bool
}

// New assembles the pipeline. evaluator gates candidates; onDraft may be nil
// when no experiment manager is wired.
func New(cfg Config, registry *model.Registry, evaluator Evaluator, onDraft DraftHandler) *Pipeline {
	if cfg.MinBatchSize <= 0 {
		cfg.MinBatchSize = 10
	}
	if cfg.StageConfidence <= 0 {
		cfg.StageConfidence = 0.3
	}
	if cfg.ValidationAccuracy <= 0 {
		cfg.ValidationAccuracy = 0.8
	}
	if cfg.BaseLearningRate <= 0 {
		cfg.BaseLearningRate = 0.05
	}
	if cfg.MinConsensus <= 0 {
		cfg.MinConsensus = 0.4
	}
	if cfg.PersonalizationDim <= 0 {
		cfg.PersonalizationDim = 8
	}

	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		logger:   logging.With("learning"),
	}
	p.stages = []Stage{
		&aggregationStage{cfg: cfg},
		&filteringStage{cfg: cfg},
		&extractionStage{pipeline: p},
		&updateStage{cfg: cfg, registry: registry},
		&validationStage{cfg: cfg, evaluator: evaluator},
		&deploymentStage{registry: registry, onDraft: onDraft},
	}
	return p
}

// Run executes one full pipeline pass over the given batches. On success the
// returned version has been registered as a draft. Aborts and rejections
// leave the active model untouched.
func (p *Pipeline) Run(ctx context.Context, batches []*aggregate.Batch) (*model.Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(batches) == 0 {
		return nil, ErrNoInput
	}

	st := &State{Batches: batches}
	for _, stage := range p.stages {
		start := time.Now()
		confidence, err := stage.Process(ctx, st)
		metrics.ObserveStage(stage.Name(), confidence, start)

		if err != nil {
			var verr *ModelValidationError
			if errors.As(err, &verr) {
				metrics.PipelineRuns.WithLabelValues("rejected").Inc()
				metrics.ModelVersionsRejected.Inc()
				p.logger.Warn().
					Str("candidate", verr.VersionID).
					Float64("accuracy", verr.Accuracy).
					Msg("candidate model rejected by validation gate")
			} else {
				metrics.PipelineRuns.WithLabelValues("error").Inc()
			}
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		if confidence < p.cfg.StageConfidence {
			metrics.PipelineRuns.WithLabelValues("aborted").Inc()
			p.logger.Warn().
				Str("stage", stage.Name()).
				Float64("confidence", confidence).
				Msg("pipeline run aborted")
			return nil, &StageAbortError{Stage: stage.Name(), Confidence: confidence}
		}
	}

	metrics.PipelineRuns.WithLabelValues("deployed").Inc()
	p.logger.Info().
		Str("candidate", st.Candidate.ID).
		Float64("accuracy", st.Accuracy).
		Int("batch_size", st.BatchSize).
		Msg("candidate model drafted")
	return st.Candidate, nil
}

// observeEngagement folds one run's engagement into the EMA and returns the
// volatility of the new observation against it.
func (p *Pipeline) observeEngagement(e float64) float64 {
	if !p.emaPrimed {
		p.engagementEMA = e
		p.emaPrimed = true
		return 0
	}
	volatility := e - p.engagementEMA
	if volatility < 0 {
		volatility = -volatility
	}
	p.engagementEMA = 0.8*p.engagementEMA + 0.2*e
	return volatility
}

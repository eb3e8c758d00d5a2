// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/aitoolsdir/curator/internal/metrics"
	"github.com/aitoolsdir/curator/internal/model"
)

// aggregationStage merges the queued batches into one training batch.
// Confidence is the count-weighted mean of the batch confidences.
type aggregationStage struct {
	cfg Config
}

func (s *aggregationStage) Name() string { return "aggregation" }

func (s *aggregationStage) Process(_ context.Context, st *State) (float64, error) {
	var weighted float64
	for _, b := range st.Batches {
		for _, g := range b.Groups {
			st.Groups = append(st.Groups, g)
			st.BatchSize += g.Count
		}
		weighted += b.Confidence * float64(b.SignalCount)
	}
	if st.BatchSize == 0 {
		return 0, nil
	}
	if st.BatchSize < s.cfg.MinBatchSize {
		// Not enough evidence to train on; confidence scales down so the
		// run aborts rather than erroring.
		return float64(st.BatchSize) / float64(s.cfg.MinBatchSize) * s.cfg.StageConfidence, nil
	}

	var total int
	for _, b := range st.Batches {
		total += b.SignalCount
	}
	return weighted / float64(total), nil
}

// filteringStage drops groups whose consensus is too weak to learn from.
// Confidence is the count-weighted survival rate.
type filteringStage struct {
	cfg Config
}

func (s *filteringStage) Name() string { return "filtering" }

func (s *filteringStage) Process(_ context.Context, st *State) (float64, error) {
	before := st.BatchSize
	kept := st.Groups[:0:0]
	surviving := 0
	for _, g := range st.Groups {
		if g.ConsensusLevel < s.cfg.MinConsensus {
			continue
		}
		kept = append(kept, g)
		surviving += g.Count
	}
	st.Groups = kept
	st.BatchSize = surviving

	if before == 0 {
		return 0, nil
	}
	return float64(surviving) / float64(before), nil
}

// extractionStage reduces groups to weighted training examples and derives
// the adaptive learning rate from batch size and recent volatility.
type extractionStage struct {
	pipeline *Pipeline
}

func (s *extractionStage) Name() string { return "extraction" }

func (s *extractionStage) Process(_ context.Context, st *State) (float64, error) {
	if len(st.Groups) == 0 {
		return 0, nil
	}

	var engagementSum, weightSum float64
	for _, g := range st.Groups {
		w := float64(g.Count) * g.ConsensusLevel
		st.Examples = append(st.Examples, Example{
			TargetID: g.Key.TargetID,
			Strength: g.AvgStrength,
			Weight:   w,
		})
		engagementSum += g.AvgStrength * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0, nil
	}

	engagement := engagementSum / weightSum
	st.Volatility = s.pipeline.observeEngagement(engagement)

	// Larger batches earn a larger step, capped at twice the base; recent
	// volatility shrinks it.
	cfg := s.pipeline.cfg
	sizeFactor := float64(st.BatchSize) / float64(cfg.MinBatchSize)
	if sizeFactor > 2 {
		sizeFactor = 2
	}
	st.LearningRate = cfg.BaseLearningRate * sizeFactor / (1 + 10*st.Volatility)
	return 1, nil
}

// updateStage performs the online gradient step: a new candidate version is
// built from the current active weights (or defaults), shifting weight mass
// between the personalized terms and the popularity/recency terms according
// to how satisfied the batch says users are.
type updateStage struct {
	cfg      Config
	registry *model.Registry
}

func (s *updateStage) Name() string { return "model_update" }

func (s *updateStage) Process(_ context.Context, st *State) (float64, error) {
	base := model.DefaultWeights()
	indexRef := "bootstrap"
	var basePersonalization []float32
	if active, ok := s.registry.Active(); ok {
		base = active.Weights
		indexRef = active.EmbeddingIndexRef
		basePersonalization = active.Personalization
	}

	var engagementSum, weightSum, consensusSum float64
	for _, ex := range st.Examples {
		engagementSum += ex.Strength * ex.Weight
		weightSum += ex.Weight
	}
	for _, g := range st.Groups {
		consensusSum += g.ConsensusLevel
	}
	if weightSum == 0 {
		return 0, nil
	}
	engagement := engagementSum / weightSum

	// Positive signal shifts mass toward the personalized terms; weak
	// signal leans back on popularity and recency exploration.
	delta := st.LearningRate * (engagement - 0.5) * 2
	w := base
	w.Similarity += delta * 0.6
	w.Preference += delta * 0.4
	w.Popularity -= delta * 0.5
	w.Recency -= delta * 0.5
	w = w.Normalize()

	candidate := model.NewVersion(w, indexRef)
	candidate.Personalization = s.fineTune(basePersonalization, st)
	candidate.TrainingHistory = append(candidate.TrainingHistory, s.records(st)...)
	st.Candidate = candidate

	avgConsensus := consensusSum / float64(len(st.Groups))
	return avgConsensus, nil
}

// fineTune nudges the low-dimensional personalization vector: each target
// hashes to a bucket that moves toward its observed strength.
func (s *updateStage) fineTune(base []float32, st *State) []float32 {
	v := make([]float32, s.cfg.PersonalizationDim)
	copy(v, base)
	for _, ex := range st.Examples {
		bucket := xxhash.Sum64String(ex.TargetID) % uint64(len(v))
		v[bucket] += float32(st.LearningRate * (ex.Strength - 0.5))
	}
	return v
}

func (s *updateStage) records(st *State) []model.TrainingRecord {
	records := make([]model.TrainingRecord, 0, len(st.Batches))
	for _, b := range st.Batches {
		records = append(records, model.TrainingRecord{
			BatchID:      b.ID,
			Timestamp:    time.Now().UTC(),
			SignalCount:  b.SignalCount,
			LearningRate: st.LearningRate,
		})
	}
	return records
}

// validationStage evaluates the candidate on the fixed held-out set.
type validationStage struct {
	cfg       Config
	evaluator Evaluator
}

func (s *validationStage) Name() string { return "validation" }

func (s *validationStage) Process(ctx context.Context, st *State) (float64, error) {
	accuracy, err := s.evaluator.Evaluate(ctx, st.Candidate)
	if err != nil {
		return 0, fmt.Errorf("evaluate candidate: %w", err)
	}
	st.Accuracy = accuracy
	metrics.ModelValidationAccuracy.Set(accuracy)

	if accuracy < s.cfg.ValidationAccuracy {
		return accuracy, &ModelValidationError{
			VersionID: st.Candidate.ID,
			Accuracy:  accuracy,
			Threshold: s.cfg.ValidationAccuracy,
		}
	}

	for i := range st.Candidate.TrainingHistory {
		st.Candidate.TrainingHistory[i].ValidationAccuracy = accuracy
	}
	return accuracy, nil
}

// deploymentStage registers the validated candidate as a draft and hands it
// to the experiment manager.
type deploymentStage struct {
	registry *model.Registry
	onDraft  DraftHandler
}

func (s *deploymentStage) Name() string { return "deployment" }

func (s *deploymentStage) Process(ctx context.Context, st *State) (float64, error) {
	if err := s.registry.Register(ctx, st.Candidate); err != nil {
		return 0, fmt.Errorf("register draft: %w", err)
	}
	if s.onDraft != nil {
		if err := s.onDraft(ctx, st.Candidate); err != nil {
			return 0, fmt.Errorf("hand off draft: %w", err)
		}
	}
	return 1, nil
}

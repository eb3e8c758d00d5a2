// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package learning

import (
	"context"

	"github.com/aitoolsdir/curator/internal/model"
)

// Evaluator scores a candidate model against a fixed held-out set and
// returns an accuracy in [0,1].
type Evaluator interface {
	Evaluate(ctx context.Context, v *model.Version) (float64, error)
}

// Features is one scored item's feature vector, each component in [0,1].
type Features struct {
	Similarity float64
	Recency    float64
	Popularity float64
	Preference float64
}

// score applies the model weights to a feature vector.
func score(w model.Weights, f Features) float64 {
	return w.Similarity*f.Similarity +
		w.Recency*f.Recency +
		w.Popularity*f.Popularity +
		w.Preference*f.Preference
}

// EvalCase is one held-out pairwise judgment: the model is correct when it
// scores Better strictly above Worse.
type EvalCase struct {
	Better Features
	Worse  Features
}

// PairwiseEvaluator measures the fraction of held-out pairs a candidate
// orders correctly. The case set is fixed at construction so every candidate
// faces the same gate.
type PairwiseEvaluator struct {
	cases []EvalCase
}

// NewPairwiseEvaluator creates an evaluator over the given cases.
func NewPairwiseEvaluator(cases []EvalCase) *PairwiseEvaluator {
	return &PairwiseEvaluator{cases: cases}
}

// Evaluate returns the fraction of pairs ordered correctly.
func (e *PairwiseEvaluator) Evaluate(_ context.Context, v *model.Version) (float64, error) {
	if len(e.cases) == 0 {
		return 0, nil
	}
	correct := 0
	for _, c := range e.cases {
		if score(v.Weights, c.Better) > score(v.Weights, c.Worse) {
			correct++
		}
	}
	return float64(correct) / float64(len(e.cases)), nil
}

// DefaultHoldout is the curated held-out set. The pairs encode orderings a
// healthy ranking model must preserve: relevance-aligned items beat merely
// popular ones, each feature helps when everything else is equal, and no
// single feature may dominate the rest entirely.
func DefaultHoldout() []EvalCase {
	return []EvalCase{
		// Dominance: better on every axis.
		{Better: Features{0.9, 0.9, 0.9, 0.9}, Worse: Features{0.1, 0.1, 0.1, 0.1}},
		// Similar and preferred beats merely popular.
		{Better: Features{0.9, 0.2, 0.3, 0.8}, Worse: Features{0.3, 0.5, 0.9, 0.1}},
		// Similarity outweighs freshness.
		{Better: Features{0.8, 0.1, 0.4, 0.5}, Worse: Features{0.4, 0.9, 0.4, 0.5}},
		// Preference match breaks an otherwise exact tie.
		{Better: Features{0.5, 0.5, 0.5, 0.9}, Worse: Features{0.5, 0.5, 0.5, 0.2}},
		// Popularity helps when everything else is equal.
		{Better: Features{0.5, 0.5, 0.8, 0.5}, Worse: Features{0.5, 0.5, 0.2, 0.5}},
		// Recency helps when everything else is equal.
		{Better: Features{0.5, 0.9, 0.5, 0.5}, Worse: Features{0.5, 0.2, 0.5, 0.5}},
		// Similar beats popular-and-fresh.
		{Better: Features{0.9, 0.3, 0.3, 0.5}, Worse: Features{0.3, 0.8, 0.8, 0.5}},
		// Strong preference plus similarity carries the pair.
		{Better: Features{0.7, 0.2, 0.2, 0.9}, Worse: Features{0.4, 0.8, 0.8, 0.3}},
		// Narrow similarity edge survives a popularity deficit.
		{Better: Features{0.6, 0.4, 0.3, 0.6}, Worse: Features{0.45, 0.5, 0.6, 0.5}},
		// Broad secondary signals beat a lone similarity spike.
		{Better: Features{0.4, 0.7, 0.7, 0.6}, Worse: Features{0.6, 0.2, 0.2, 0.4}},
	}
}

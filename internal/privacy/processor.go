// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package privacy is the trust boundary between per-user signal data and the
// training path. Batches crossing it get Laplace noise on their numeric
// aggregates, calibrated by a per-sensitivity epsilon, and a fresh round of
// subject pseudonyms so training data cannot be linked back to profiles.
// A per-window epsilon budget caps total disclosure; batches that would
// overdraw it are deferred, never processed under-protected.
package privacy

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
)

// ErrBudgetExhausted defers a batch to the next window: the remaining
// epsilon budget cannot cover it.
var ErrBudgetExhausted = errors.New("privacy budget exhausted")

// Sensitivity classifies how revealing a field is; higher sensitivity gets
// a smaller epsilon and therefore more noise.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Config sets the epsilon per sensitivity level and the window budget.
type Config struct {
	EpsilonLow    float64
	EpsilonMedium float64
	EpsilonHigh   float64

	// BudgetPerWindow caps the total epsilon spent within one window.
	BudgetPerWindow float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EpsilonLow:      1.0,
		EpsilonMedium:   0.5,
		EpsilonHigh:     0.1,
		BudgetPerWindow: 10.0,
	}
}

// Epsilon returns the epsilon for a sensitivity level.
func (c Config) Epsilon(s Sensitivity) float64 {
	switch s {
	case SensitivityLow:
		return c.EpsilonLow
	case SensitivityMedium:
		return c.EpsilonMedium
	default:
		return c.EpsilonHigh
	}
}

// Processor privatizes aggregate batches.
type Processor struct {
	cfg        Config
	accountant *Accountant
	logger     zerolog.Logger
}

// NewProcessor creates a processor drawing from the given budget accountant.
func NewProcessor(cfg Config, accountant *Accountant) *Processor {
	return &Processor{
		cfg:        cfg,
		accountant: accountant,
		logger:     logging.With("privacy"),
	}
}

// Process returns a privatized copy of the batch: noised group counts and
// strengths, and re-pseudonymized subject linkage. The input batch is not
// modified. Returns ErrBudgetExhausted when the window budget cannot cover
// the batch; the caller requeues it for the next window.
func (p *Processor) Process(_ context.Context, batch *aggregate.Batch) (*aggregate.Batch, error) {
	// Group counts are low-sensitivity, mean strengths medium. One epsilon
	// of each level is spent per group.
	cost := float64(len(batch.Groups)) * (p.cfg.Epsilon(SensitivityLow) + p.cfg.Epsilon(SensitivityMedium))
	if !p.accountant.Spend(cost) {
		metrics.PrivacyBatchesDeferred.Inc()
		p.logger.Warn().
			Str("batch_id", batch.ID).
			Float64("cost", cost).
			Float64("remaining", p.accountant.Remaining()).
			Msg("batch deferred, window budget exhausted")
		return nil, fmt.Errorf("batch %s requires epsilon %.2f: %w", batch.ID, cost, ErrBudgetExhausted)
	}

	repseu, err := newRepseudonymizer()
	if err != nil {
		return nil, err
	}

	out := *batch
	out.Groups = make([]aggregate.AggregatedSignal, len(batch.Groups))
	for i, g := range batch.Groups {
		ng := g

		// Count has L1 sensitivity 1 (one subject joins or leaves).
		noise, err := laplace(1.0 / p.cfg.Epsilon(SensitivityLow))
		if err != nil {
			return nil, fmt.Errorf("sample count noise: %w", err)
		}
		ng.Count = int(math.Round(float64(g.Count) + noise))
		if ng.Count < 0 {
			ng.Count = 0
		}

		// A mean over n strengths in [0,1] has L1 sensitivity 1/n.
		if g.Count > 0 {
			noise, err = laplace((1.0 / float64(g.Count)) / p.cfg.Epsilon(SensitivityMedium))
			if err != nil {
				return nil, fmt.Errorf("sample strength noise: %w", err)
			}
			ng.AvgStrength = clamp01(g.AvgStrength + noise)
		}

		ng.SubjectIDs = make([]string, len(g.SubjectIDs))
		for j, id := range g.SubjectIDs {
			ng.SubjectIDs[j] = repseu(id)
		}
		out.Groups[i] = ng
	}

	// Raw signal linkage must not cross into the training path.
	out.SignalIDs = nil
	return &out, nil
}

// newRepseudonymizer returns a keyed hash with a fresh random per-batch key,
// so re-pseudonymized IDs are stable within a batch but unlinkable across
// batches and back to the profile store.
func newRepseudonymizer() (func(string) string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate batch key: %w", err)
	}
	return func(id string) string {
		h, _ := blake2b.New256(key)
		h.Write([]byte(id))
		return hex.EncodeToString(h.Sum(nil)[:16])
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

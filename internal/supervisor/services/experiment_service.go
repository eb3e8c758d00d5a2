// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/experiment"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/model"
)

// TreatmentVariant is the variant name drafts are evaluated under.
const TreatmentVariant = "treatment"

// ExperimentService runs each drafted model version through an A/B
// evaluation against the active model before it may reach the canary
// rollout. One experiment serves at a time: the router splits live traffic
// between control and treatment, the manager accumulates outcomes, and the
// periodic evaluation promotes or retires the draft. The very first draft
// has no control to compare against and goes straight to rollout.
type ExperimentService struct {
	manager  *experiment.Manager
	router   *experiment.Router
	registry *model.Registry
	drafts   <-chan string
	rollouts chan<- string

	evalInterval   time.Duration
	treatmentShare int
	logger         zerolog.Logger
}

// NewExperimentService creates the evaluation loop. drafts carries version
// IDs from the learning pipeline; rollouts receives promoted ones.
func NewExperimentService(manager *experiment.Manager, router *experiment.Router, registry *model.Registry, drafts <-chan string, rollouts chan<- string, evalInterval time.Duration, treatmentShare int) *ExperimentService {
	if evalInterval <= 0 {
		evalInterval = time.Minute
	}
	if treatmentShare <= 0 || treatmentShare >= 100 {
		treatmentShare = 10
	}
	return &ExperimentService{
		manager:        manager,
		router:         router,
		registry:       registry,
		drafts:         drafts,
		rollouts:       rollouts,
		evalInterval:   evalInterval,
		treatmentShare: treatmentShare,
		logger:         logging.With("experiment-service"),
	}
}

// Serve implements suture.Service.
func (s *ExperimentService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case draftID := <-s.drafts:
			if err := s.evaluate(ctx, draftID); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error().Err(err).Str("version_id", draftID).Msg("experiment evaluation failed")
			}
		}
	}
}

// evaluate runs one draft's experiment to a decision.
func (s *ExperimentService) evaluate(ctx context.Context, draftID string) error {
	active, ok := s.registry.Active()
	if !ok {
		// Nothing to compare against; the canary guardrails are the only
		// gate for the first model.
		s.logger.Info().Str("version_id", draftID).Msg("no active model, draft goes straight to rollout")
		s.handoff(draftID)
		return nil
	}

	exp, err := s.manager.Create(ctx,
		map[string]string{
			experiment.ControlVariant: active.ID,
			TreatmentVariant:          draftID,
		},
		map[string]int{
			experiment.ControlVariant: 100 - s.treatmentShare,
			TreatmentVariant:          s.treatmentShare,
		})
	if err != nil {
		return err
	}

	s.router.Begin(exp.ID, map[string]string{
		experiment.ControlVariant: active.ID,
		TreatmentVariant:          draftID,
	})
	defer s.router.End()

	s.logger.Info().
		Str("experiment_id", exp.ID).
		Str("control", active.ID).
		Str("treatment", draftID).
		Int("treatment_share", s.treatmentShare).
		Msg("experiment serving")

	ticker := time.NewTicker(s.evalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			decision, err := s.manager.Evaluate(ctx, exp.ID, TreatmentVariant)
			if errors.Is(err, experiment.ErrInsufficientSamples) {
				continue
			}
			if err != nil {
				return err
			}
			if decision.Promote {
				s.logger.Info().Str("version_id", draftID).Float64("p_value", decision.PValue).
					Msg("treatment promoted to rollout")
				s.handoff(draftID)
				return nil
			}
			s.logger.Info().Str("version_id", draftID).Str("reason", decision.Reason).
				Msg("treatment rejected, retiring draft")
			return s.registry.Retire(ctx, draftID)
		}
	}
}

// handoff queues a promoted version for canary rollout without blocking the
// evaluation loop.
func (s *ExperimentService) handoff(versionID string) {
	select {
	case s.rollouts <- versionID:
	default:
		s.logger.Warn().Str("version_id", versionID).Msg("rollout queue full, promoted version parked in registry")
	}
}

func (s *ExperimentService) String() string { return "experiment-evaluator" }

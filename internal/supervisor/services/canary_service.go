// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/canary"
	"github.com/aitoolsdir/curator/internal/logging"
)

// Rollouter matches the canary controller's surface.
type Rollouter interface {
	Rollout(ctx context.Context, versionID string) error
}

// CanaryService consumes drafted model versions and runs each through a
// staged canary rollout, one at a time. A rollback ends that candidate only;
// the service keeps serving the queue.
type CanaryService struct {
	controller Rollouter
	drafts     <-chan string
	logger     zerolog.Logger
}

// NewCanaryService creates the rollout monitor. drafts carries version IDs
// from the learning pipeline's deployment handoff.
func NewCanaryService(controller Rollouter, drafts <-chan string) *CanaryService {
	return &CanaryService{
		controller: controller,
		drafts:     drafts,
		logger:     logging.With("canary-service"),
	}
}

// Serve implements suture.Service.
func (s *CanaryService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case versionID := <-s.drafts:
			err := s.controller.Rollout(ctx, versionID)
			var rb *canary.RollbackError
			switch {
			case err == nil:
				s.logger.Info().Str("version_id", versionID).Msg("rollout promoted version")
			case errors.As(err, &rb):
				s.logger.Warn().Str("version_id", versionID).Str("guardrail", rb.Guardrail).
					Int("stage", rb.Stage).Msg("rollout rolled back")
			case errors.Is(err, context.Canceled):
				return ctx.Err()
			default:
				s.logger.Error().Err(err).Str("version_id", versionID).Msg("rollout failed")
			}
		}
	}
}

func (s *CanaryService) String() string { return "canary-monitor" }

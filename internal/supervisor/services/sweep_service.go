// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/logging"
)

// ArchivedPurger matches the signal log's retention surface.
type ArchivedPurger interface {
	PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SweepService enforces signal retention: aggregated (archived) signals
// older than the retention window are removed on a fixed cadence.
type SweepService struct {
	log       ArchivedPurger
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSweepService creates the retention sweeper.
func NewSweepService(log ArchivedPurger, retention, interval time.Duration) *SweepService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepService{
		log:       log,
		retention: retention,
		interval:  interval,
		logger:    logging.With("retention-sweeper"),
	}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-s.retention)
			n, err := s.log.PurgeArchivedBefore(ctx, cutoff)
			if err != nil {
				s.logger.Warn().Err(err).Msg("retention sweep failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("purged", n).Time("cutoff", cutoff).Msg("retention sweep")
			}
		}
	}
}

func (s *SweepService) String() string { return "retention-sweeper" }

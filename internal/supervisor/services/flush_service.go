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

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/logging"
)

// Flusher matches the aggregator's flush surface.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushService closes the aggregation window on a fixed cadence, so signals
// flow downstream even when traffic never hits the count trigger. A final
// flush runs on shutdown so buffered signals are not stranded.
type FlushService struct {
	agg      Flusher
	interval time.Duration
	logger   zerolog.Logger
}

// NewFlushService creates the window flusher.
func NewFlushService(agg Flusher, interval time.Duration) *FlushService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &FlushService{
		agg:      agg,
		interval: interval,
		logger:   logging.With("flush-service"),
	}
}

// Serve implements suture.Service.
func (s *FlushService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.flush(flushCtx)
			return ctx.Err()
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// flush closes the current window. A low-confidence abort is a normal
// quality outcome, not a fault.
func (s *FlushService) flush(ctx context.Context) {
	err := s.agg.Flush(ctx)
	switch {
	case err == nil:
	case errors.Is(err, aggregate.ErrLowConfidence):
		s.logger.Debug().Err(err).Msg("window aborted on low confidence")
	default:
		s.logger.Warn().Err(err).Msg("window flush failed")
	}
}

func (s *FlushService) String() string { return "window-flusher" }

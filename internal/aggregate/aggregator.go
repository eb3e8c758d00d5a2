// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
	"github.com/aitoolsdir/curator/internal/signal"
)

// ErrLowConfidence marks a batch aborted by the confidence floor.
var ErrLowConfidence = errors.New("batch confidence below floor")

// Config tunes windowing and quality filters.
type Config struct {
	// Window is the time bound of an aggregation window.
	Window time.Duration

	// MaxSignals flushes the window early once this many signals accumulate.
	MaxSignals int

	// MinGroupCount drops groups with fewer surviving signals.
	MinGroupCount int

	// OutlierZ drops individual signals whose strength z-score within their
	// group exceeds this threshold.
	OutlierZ float64

	// MinConfidence aborts batches whose confidence falls below it.
	MinConfidence float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Window:        time.Minute,
		MaxSignals:    500,
		MinGroupCount: 3,
		OutlierZ:      3.0,
		MinConfidence: 0.3,
	}
}

// Sink receives flushed batches that passed the confidence floor.
type Sink func(ctx context.Context, batch *Batch) error

// Aggregator accumulates signals and flushes them as consensus batches. Safe
// for concurrent use; a flush in progress never blocks new signals beyond
// the brief window swap.
type Aggregator struct {
	cfg    Config
	sink   Sink
	logger zerolog.Logger

	mu          sync.Mutex
	pending     []*signal.FeedbackSignal
	windowStart time.Time

	now func() time.Time
}

// New creates an aggregator delivering batches to sink.
func New(cfg Config, sink Sink) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = 500
	}
	if cfg.OutlierZ <= 0 {
		cfg.OutlierZ = 3.0
	}
	now := time.Now
	return &Aggregator{
		cfg:         cfg,
		sink:        sink,
		logger:      logging.With("aggregator"),
		windowStart: now(),
		now:         now,
	}
}

// Add accumulates one signal. When the count bound is reached the window
// flushes inline.
func (a *Aggregator) Add(ctx context.Context, s *signal.FeedbackSignal) error {
	a.mu.Lock()
	a.pending = append(a.pending, s)
	full := len(a.pending) >= a.cfg.MaxSignals
	var window []*signal.FeedbackSignal
	var windowRange TimeRange
	if full {
		window, windowRange = a.swapLocked()
	}
	a.mu.Unlock()

	if !full {
		return nil
	}
	return a.emit(ctx, window, windowRange)
}

// Flush closes the current window regardless of fill level. Called by the
// window timer service.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	window, windowRange := a.swapLocked()
	a.mu.Unlock()
	return a.emit(ctx, window, windowRange)
}

// Pending returns the number of signals in the open window.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// HandleMessage is the event-bus consumer glue: it decodes a signal payload
// and accumulates it. Decode failures are permanent; the bus dead-letters
// them after retry exhaustion.
func (a *Aggregator) HandleMessage(msg *message.Message) error {
	s, err := signal.UnmarshalSignal(msg.Payload)
	if err != nil {
		return fmt.Errorf("decode signal %s: %w", msg.UUID, err)
	}
	return a.Add(msg.Context(), s)
}

// swapLocked detaches the current window. Caller holds the lock.
func (a *Aggregator) swapLocked() ([]*signal.FeedbackSignal, TimeRange) {
	window := a.pending
	a.pending = nil
	now := a.now()
	r := TimeRange{Start: a.windowStart, End: now}
	a.windowStart = now
	return window, r
}

// emit reduces a window to a batch and hands it to the sink.
func (a *Aggregator) emit(ctx context.Context, window []*signal.FeedbackSignal, windowRange TimeRange) error {
	if len(window) == 0 {
		metrics.AggregateBatches.WithLabelValues("empty").Inc()
		return nil
	}

	batch := a.reduce(window, windowRange)
	if batch.Confidence < a.cfg.MinConfidence {
		metrics.AggregateBatches.WithLabelValues("low_confidence").Inc()
		a.logger.Warn().
			Str("batch_id", batch.ID).
			Float64("confidence", batch.Confidence).
			Int("signals", batch.SignalCount).
			Msg("batch aborted below confidence floor")
		return fmt.Errorf("batch %s: %w", batch.ID, ErrLowConfidence)
	}

	if err := a.sink(ctx, batch); err != nil {
		return fmt.Errorf("deliver batch %s: %w", batch.ID, err)
	}
	metrics.AggregateBatches.WithLabelValues("emitted").Inc()
	a.logger.Debug().
		Str("batch_id", batch.ID).
		Int("groups", len(batch.Groups)).
		Int("signals", batch.SignalCount).
		Float64("confidence", batch.Confidence).
		Msg("batch emitted")
	return nil
}

// reduce groups a window and applies the quality filters.
func (a *Aggregator) reduce(window []*signal.FeedbackSignal, windowRange TimeRange) *Batch {
	batch := NewBatch(windowRange)
	batch.SignalCount = len(window)

	groups := make(map[GroupKey][]*signal.FeedbackSignal)
	for _, s := range window {
		batch.SignalIDs = append(batch.SignalIDs, s.ID)
		key := GroupKey{Kind: s.Kind, TargetID: s.TargetID}
		groups[key] = append(groups[key], s)
	}

	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	// Deterministic group order for reproducible downstream processing.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].TargetID < keys[j].TargetID
	})

	surviving := 0
	var weightedConsensus float64
	for _, key := range keys {
		members := a.filterOutliers(groups[key])
		if len(members) < a.cfg.MinGroupCount {
			metrics.AggregateGroupsDropped.WithLabelValues("min_count").Inc()
			continue
		}

		strengths := make([]float64, len(members))
		subjects := make([]string, len(members))
		for i, s := range members {
			strengths[i] = s.Strength
			subjects[i] = s.SubjectID
		}
		m := mean(strengths)
		c := consensus(stddev(strengths, m))

		batch.Groups = append(batch.Groups, AggregatedSignal{
			Key:            key,
			Count:          len(members),
			AvgStrength:    m,
			ConsensusLevel: c,
			TimeRange:      windowRange,
			SubjectIDs:     subjects,
		})
		surviving += len(members)
		weightedConsensus += c * float64(len(members))
	}

	if surviving > 0 {
		// Confidence combines signal survival with how strongly the
		// surviving groups agree.
		survivalRate := float64(surviving) / float64(len(window))
		batch.Confidence = survivalRate * (weightedConsensus / float64(surviving))
	}
	return batch
}

// filterOutliers drops members whose strength z-score exceeds the threshold.
// Groups too small for a meaningful spread pass through untouched.
func (a *Aggregator) filterOutliers(members []*signal.FeedbackSignal) []*signal.FeedbackSignal {
	if len(members) < 4 {
		return members
	}
	strengths := make([]float64, len(members))
	for i, s := range members {
		strengths[i] = s.Strength
	}
	m := mean(strengths)
	sd := stddev(strengths, m)
	if sd == 0 {
		return members
	}

	kept := members[:0:0]
	for _, s := range members {
		z := (s.Strength - m) / sd
		if z < 0 {
			z = -z
		}
		if z > a.cfg.OutlierZ {
			metrics.AggregateGroupsDropped.WithLabelValues("outlier").Inc()
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/embedding"
	"github.com/aitoolsdir/curator/internal/eventbus"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
)

// ErrRateLimited is returned when ingestion throughput exceeds the
// configured rate. Transient: callers may retry later.
var ErrRateLimited = errors.New("ingestion rate limit exceeded")

// Publisher is the bus-facing surface the collector needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// RealtimeUpdater applies immediate profile updates for high-confidence
// signals.
type RealtimeUpdater interface {
	ApplyInteraction(ctx context.Context, subjectID string, itemVec []float32, strength float64) error
}

// CollectorConfig tunes the collector.
type CollectorConfig struct {
	// RealtimeThreshold triggers the immediate profile path when a
	// signal's strength exceeds it.
	RealtimeThreshold float64

	// MaxRetries and RetryBaseDelay bound the storage/publish retry loop
	// before dead-lettering.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// RatePerSecond and RateBurst bound overall ingest throughput.
	RatePerSecond float64
	RateBurst     int

	// DedupeTTL bounds idempotency-key memory.
	DedupeTTL time.Duration
}

// Collector normalizes raw feedback events into canonical signals.
//
// Per-subject isolation holds by construction: ingestion shares no mutable
// state across subjects except the deduper (lock-per-call, no blocking I/O)
// and the bus buffer; a failing subject cannot block another's submissions.
type Collector struct {
	cfg      CollectorConfig
	validate *validator.Validate
	pseudo   *Pseudonymizer
	dedupe   *Deduper
	log      Log
	bus      Publisher
	limiter  *rate.Limiter
	logger   zerolog.Logger

	// Real-time path collaborators; all optional. When absent, only the
	// batch path runs.
	realtime   RealtimeUpdater
	embeddings embedding.Provider
	breaker    *gobreaker.CircuitBreaker[struct{}]

	auditlog *audit.Logger
}

// NewCollector creates a collector. log and bus are required; the real-time
// collaborators may be nil.
func NewCollector(cfg CollectorConfig, pseudo *Pseudonymizer, log Log, bus Publisher) *Collector {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 50 * time.Millisecond
	}
	if cfg.RealtimeThreshold == 0 {
		cfg.RealtimeThreshold = 0.7
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 500
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = int(cfg.RatePerSecond) * 2
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "realtime-profile",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Collector{
		cfg:      cfg,
		validate: validator.New(),
		pseudo:   pseudo,
		dedupe:   NewDeduper(cfg.DedupeTTL),
		log:      log,
		bus:      bus,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:   logging.With("collector"),
		breaker:  breaker,
	}
}

// WithRealtime wires the immediate profile-update path.
func (c *Collector) WithRealtime(updater RealtimeUpdater, provider embedding.Provider) *Collector {
	c.realtime = updater
	c.embeddings = provider
	return c
}

// WithAudit wires audit logging for dead-letter alerts.
func (c *Collector) WithAudit(auditlog *audit.Logger) *Collector {
	c.auditlog = auditlog
	return c
}

// Submit validates, normalizes, and persists one feedback event.
//
// Malformed input is rejected synchronously and never retried. Storage and
// bus failures are retried with bounded exponential backoff, then
// dead-lettered with an alert. Duplicate idempotency keys acknowledge the
// original signal without double-counting.
func (c *Collector) Submit(ctx context.Context, ev *Event) (*Ack, error) {
	if !c.limiter.Allow() {
		metrics.SignalsRejected.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	if err := c.validateEvent(ev); err != nil {
		metrics.SignalsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	subjectID := c.pseudo.Pseudonymize(ev.SubjectToken)
	strength := ComputeStrength(ev.Kind, ev.Raw)
	sig := NewFeedbackSignal(subjectID, ev.Kind, ev.TargetID, strength, ts)
	sig.Context = ev.Context

	// Duplicate submissions acknowledge the original signal; nothing is
	// persisted or published again.
	if originalID, dup := c.dedupe.Seen(ev.IdempotencyKey, sig.ID); dup {
		metrics.SignalsDeduped.Inc()
		return &Ack{SignalID: originalID, Duplicate: true}, nil
	}

	if err := c.withRetry(ctx, "append", func() error {
		return c.log.Append(ctx, sig)
	}); err != nil {
		c.dedupe.Forget(ev.IdempotencyKey, sig.ID)
		c.deadLetter(ctx, sig, "append", err)
		return nil, err
	}

	payload, err := sig.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal signal: %w", err)
	}
	if err := c.withRetry(ctx, "publish", func() error {
		return c.bus.Publish(eventbus.TopicSignals, payload)
	}); err != nil {
		// The signal is durably logged; only bus delivery failed. Dead-
		// letter for redelivery and acknowledge the submission.
		c.deadLetter(ctx, sig, "publish", err)
	}

	metrics.SignalsIngested.WithLabelValues(string(sig.Kind)).Inc()

	if sig.Strength > c.cfg.RealtimeThreshold {
		c.realtimeUpdate(ctx, sig)
	}

	return &Ack{SignalID: sig.ID}, nil
}

// validateEvent maps validator failures onto the ValidationError taxonomy.
func (c *Collector) validateEvent(ev *Event) error {
	if ev == nil {
		return &ValidationError{Field: "event", Reason: "missing"}
	}
	if err := c.validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag()}
		}
		return &ValidationError{Field: "event", Reason: err.Error()}
	}
	if ev.Kind == KindExplicit && (ev.Raw.Rating < 0 || ev.Raw.Rating > 1) {
		return &ValidationError{Field: "rating", Reason: "outside [0,1]"}
	}
	return nil
}

// withRetry runs op with bounded exponential backoff on transient errors.
func (c *Collector) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay << uint(attempt-1)
			delay += time.Duration(rand.Int63n(int64(delay))) //nolint:gosec // jitter only
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) && !errors.Is(err, eventbus.ErrBufferFull) {
			return err
		}
		c.logger.Debug().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("transient failure, retrying")
	}
	return fmt.Errorf("%s exhausted %d retries: %w", op, c.cfg.MaxRetries, lastErr)
}

// deadLetter records a signal that exhausted its retries and raises the
// alert trail: error log, metric, audit entry, and a best-effort publish to
// the dead-letter topic for later replay.
func (c *Collector) deadLetter(ctx context.Context, sig *FeedbackSignal, op string, cause error) {
	metrics.SignalsDeadLettered.Inc()
	c.logger.Error().Err(cause).
		Str("signal_id", sig.ID).
		Str("op", op).
		Msg("signal dead-lettered")

	if payload, err := sig.Marshal(); err == nil {
		if err := c.bus.Publish(eventbus.TopicDeadLetter, payload); err != nil {
			c.logger.Error().Err(err).Str("signal_id", sig.ID).Msg("dead-letter publish failed")
		}
	}

	if c.auditlog != nil {
		c.auditlog.Entry(ctx, audit.EventTypeSignalDeadLetter, sig.ID,
			"signal dead-lettered after retry exhaustion",
			map[string]string{"op": op, "cause": cause.Error()})
	}
}

// realtimeUpdate runs the immediate profile path behind the circuit
// breaker. Best-effort: failures are recorded, never surfaced to the
// submitter, and never block other subjects.
func (c *Collector) realtimeUpdate(ctx context.Context, sig *FeedbackSignal) {
	if c.realtime == nil || c.embeddings == nil {
		return
	}

	itemVec, err := c.embeddings.ItemVector(ctx, sig.TargetID)
	if err != nil {
		if !errors.Is(err, embedding.ErrUnknownItem) {
			c.logger.Debug().Err(err).Str("target", sig.TargetID).Msg("realtime update skipped")
		}
		return
	}

	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.realtime.ApplyInteraction(ctx, sig.SubjectID, itemVec, sig.Strength)
	})
	switch {
	case err == nil:
		metrics.RealtimeProfileUpdates.WithLabelValues("ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RealtimeProfileUpdates.WithLabelValues("breaker_open").Inc()
	default:
		metrics.RealtimeProfileUpdates.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("subject", sig.SubjectID).Msg("realtime profile update failed")
	}
}

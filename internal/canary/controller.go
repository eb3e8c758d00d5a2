// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package canary rolls a candidate model version out to increasing traffic
// shares, watching operational guardrails at every stage. A rollout ends in
// exactly one of two states: the candidate fully active, or fully retired
// with the previous active version untouched.
package canary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
	"github.com/aitoolsdir/curator/internal/model"
)

// Health is a point-in-time operational reading for canary traffic.
type Health struct {
	Requests    int
	ErrorRate   float64
	MeanLatency time.Duration
}

// HealthSource supplies operational readings for the canary's slice of
// traffic.
type HealthSource interface {
	Health() Health
}

// HealthFunc adapts a function to HealthSource.
type HealthFunc func() Health

func (f HealthFunc) Health() Health { return f() }

// RollbackError reports an automatic rollback and the guardrail that
// triggered it.
type RollbackError struct {
	VersionID string
	Guardrail string
	Stage     int
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("canary %s rolled back at %d%%: guardrail %s breached", e.VersionID, e.Stage, e.Guardrail)
}

// Config tunes rollout pacing and guardrail thresholds. Thresholds are
// absolute, unlike experiment guardrails which are relative to control.
type Config struct {
	Stages        []int
	DwellPerStage time.Duration
	CheckInterval time.Duration

	MaxErrorRate float64
	MaxLatency   time.Duration

	// MinRequests gates guardrail judgment: below this many requests the
	// reading is too thin to act on.
	MinRequests int
}

// DefaultConfig returns production rollout pacing.
func DefaultConfig() Config {
	return Config{
		Stages:        []int{5, 25, 50, 100},
		DwellPerStage: 10 * time.Minute,
		CheckInterval: 30 * time.Second,
		MaxErrorRate:  0.05,
		MaxLatency:    500 * time.Millisecond,
		MinRequests:   20,
	}
}

// Controller drives canary rollouts against the model registry.
type Controller struct {
	cfg      Config
	registry *model.Registry
	health   HealthSource
	auditlog *audit.Logger
	logger   zerolog.Logger

	mu      sync.Mutex
	version string
	stage   int
}

// NewController creates a canary controller. auditlog may be nil.
func NewController(cfg Config, registry *model.Registry, health HealthSource, auditlog *audit.Logger) *Controller {
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultConfig().Stages
	}
	if cfg.DwellPerStage <= 0 {
		cfg.DwellPerStage = 10 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Controller{
		cfg:      cfg,
		registry: registry,
		health:   health,
		auditlog: auditlog,
		logger:   logging.With("canary"),
	}
}

// Current returns the version under rollout and its traffic share, or
// ("", 0) when no rollout is in flight. Request routing splits on this.
func (c *Controller) Current() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, c.stage
}

// Rollout runs a full staged rollout of a draft version, blocking until the
// version is active or rolled back. Any guardrail breach, at any stage,
// reverts the whole rollout; context cancellation does the same. Only one
// rollout runs at a time.
func (c *Controller) Rollout(ctx context.Context, versionID string) error {
	c.mu.Lock()
	if c.version != "" {
		cur := c.version
		c.mu.Unlock()
		return fmt.Errorf("rollout of %s already in flight", cur)
	}
	c.version = versionID
	c.mu.Unlock()
	defer c.clear()

	if err := c.registry.BeginCanary(ctx, versionID); err != nil {
		return fmt.Errorf("begin canary %s: %w", versionID, err)
	}
	c.logger.Info().Str("version_id", versionID).Msg("canary rollout started")

	for _, pct := range c.cfg.Stages {
		c.setStage(pct)
		c.audit(ctx, audit.EventTypeCanaryAdvanced, versionID, "canary stage advanced",
			map[string]string{"stage": fmt.Sprintf("%d", pct)})
		c.logger.Info().Str("version_id", versionID).Int("stage", pct).Msg("canary stage advanced")

		if err := c.dwell(ctx, versionID, pct); err != nil {
			return err
		}
	}

	if err := c.registry.Activate(ctx, versionID); err != nil {
		c.rollback(ctx, versionID, "activation_failed", 100)
		return fmt.Errorf("activate %s: %w", versionID, err)
	}
	metrics.CanaryPromotions.Inc()
	c.audit(ctx, audit.EventTypeCanaryComplete, versionID, "canary promoted to active", nil)
	c.logger.Info().Str("version_id", versionID).Msg("canary rollout complete")
	return nil
}

// dwell holds one stage for the configured duration, polling guardrails.
func (c *Controller) dwell(ctx context.Context, versionID string, pct int) error {
	deadline := time.NewTimer(c.cfg.DwellPerStage)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.rollback(ctx, versionID, "cancelled", pct)
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			if guardrail := c.breached(); guardrail != "" {
				c.rollback(ctx, versionID, guardrail, pct)
				return &RollbackError{VersionID: versionID, Guardrail: guardrail, Stage: pct}
			}
		}
	}
}

// breached returns the name of the first breached guardrail, or "".
func (c *Controller) breached() string {
	h := c.health.Health()
	if h.Requests < c.cfg.MinRequests {
		return ""
	}
	if c.cfg.MaxErrorRate > 0 && h.ErrorRate > c.cfg.MaxErrorRate {
		return "error_rate"
	}
	if c.cfg.MaxLatency > 0 && h.MeanLatency > c.cfg.MaxLatency {
		return "latency"
	}
	return ""
}

// rollback retires the canary version. The previously active version was
// never touched, so retiring the canary restores full old-model traffic.
func (c *Controller) rollback(ctx context.Context, versionID, guardrail string, pct int) {
	// The rollback must land even when the rollout's context is gone.
	ctx = context.WithoutCancel(ctx)
	if err := c.registry.Retire(ctx, versionID); err != nil {
		c.logger.Error().Err(err).Str("version_id", versionID).Msg("canary rollback retire failed")
	}
	metrics.CanaryRollbacks.WithLabelValues(guardrail).Inc()
	c.audit(ctx, audit.EventTypeCanaryRollback, versionID, "canary rolled back",
		map[string]string{"guardrail": guardrail, "stage": fmt.Sprintf("%d", pct)})
	c.logger.Warn().
		Str("version_id", versionID).
		Str("guardrail", guardrail).
		Int("stage", pct).
		Msg("canary rolled back")
}

func (c *Controller) setStage(pct int) {
	c.mu.Lock()
	c.stage = pct
	c.mu.Unlock()
	metrics.CanaryStage.Set(float64(pct))
}

func (c *Controller) clear() {
	c.mu.Lock()
	c.version = ""
	c.stage = 0
	c.mu.Unlock()
	metrics.CanaryStage.Set(0)
}

func (c *Controller) audit(ctx context.Context, typ audit.EventType, id, msg string, details map[string]string) {
	if c.auditlog != nil {
		c.auditlog.Entry(ctx, typ, id, msg, details)
	}
}

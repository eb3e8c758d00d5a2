// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package experiment runs A/B evaluations of candidate model versions.
// Subjects are assigned to variants by stable hash bucketing and never
// reassigned for the lifetime of an experiment; promotion requires both
// statistical significance on the success metric and clean guardrails.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
)

// ControlVariant is the reserved baseline variant name.
const ControlVariant = "control"

var (
	// ErrNotFound is returned for unknown experiment IDs.
	ErrNotFound = errors.New("experiment not found")

	// ErrClosed is returned when operating on a decided experiment.
	ErrClosed = errors.New("experiment already closed")

	// ErrInsufficientSamples defers evaluation until both variants reach
	// the minimum sample size.
	ErrInsufficientSamples = errors.New("insufficient samples for evaluation")
)

// GuardrailViolation reports a treatment regressing an operational guardrail
// beyond the allowance. A recoverable event: it rejects the experiment, it
// never crashes anything.
type GuardrailViolation struct {
	Guardrail string
	Control   float64
	Treatment float64
}

func (e *GuardrailViolation) Error() string {
	return fmt.Sprintf("guardrail %s regressed: control %.4f, treatment %.4f", e.Guardrail, e.Control, e.Treatment)
}

// Status is an experiment's lifecycle state.
type Status string

const (
	StatusRunning  Status = "running"
	StatusPromoted Status = "promoted"
	StatusRejected Status = "rejected"
)

// Config tunes evaluation.
type Config struct {
	MinSampleSize     int
	SignificanceLevel float64

	// Guardrail allowances relative to control (fractional; 0.1 = +10%).
	MaxErrorRateRegression float64
	MaxLatencyRegression   float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:          200,
		SignificanceLevel:      0.05,
		MaxErrorRateRegression: 0.1,
		MaxLatencyRegression:   0.2,
	}
}

// variantState accumulates one variant's observations.
type variantState struct {
	versionID string
	metric    sample
	requests  int
	errors    int
	latency   time.Duration
}

func (v *variantState) errorRate() float64 {
	if v.requests == 0 {
		return 0
	}
	return float64(v.errors) / float64(v.requests)
}

func (v *variantState) meanLatency() float64 {
	if v.requests == 0 {
		return 0
	}
	return float64(v.latency) / float64(v.requests)
}

// Experiment is one A/B evaluation.
type Experiment struct {
	ID           string
	Status       Status
	CreatedAt    time.Time
	TrafficSplit map[string]int

	variants     map[string]*variantState
	participants map[string]string // subjectID -> variant
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Promote   bool
	PValue    float64
	Reason    string
	VersionID string
}

// Manager owns all experiments.
type Manager struct {
	cfg      Config
	logger   zerolog.Logger
	auditlog *audit.Logger

	mu          sync.Mutex
	experiments map[string]*Experiment
}

// NewManager creates an experiment manager. auditlog may be nil.
func NewManager(cfg Config, auditlog *audit.Logger) *Manager {
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 200
	}
	if cfg.SignificanceLevel <= 0 {
		cfg.SignificanceLevel = 0.05
	}
	return &Manager{
		cfg:         cfg,
		logger:      logging.With("experiment"),
		auditlog:    auditlog,
		experiments: make(map[string]*Experiment),
	}
}

// Create starts an experiment. variants maps variant name to model version
// ID and must include the control; split percentages must cover exactly the
// variant names and sum to 100.
func (m *Manager) Create(ctx context.Context, variants map[string]string, split map[string]int) (*Experiment, error) {
	if _, ok := variants[ControlVariant]; !ok {
		return nil, fmt.Errorf("variants must include %q", ControlVariant)
	}
	if len(variants) < 2 {
		return nil, fmt.Errorf("need at least two variants, got %d", len(variants))
	}
	total := 0
	for name, pct := range split {
		if _, ok := variants[name]; !ok {
			return nil, fmt.Errorf("split names unknown variant %q", name)
		}
		if pct <= 0 {
			return nil, fmt.Errorf("variant %q has non-positive share %d", name, pct)
		}
		total += pct
	}
	if total != 100 {
		return nil, fmt.Errorf("traffic split sums to %d, want 100", total)
	}
	if len(split) != len(variants) {
		return nil, fmt.Errorf("split covers %d variants, want %d", len(split), len(variants))
	}

	exp := &Experiment{
		ID:           uuid.New().String(),
		Status:       StatusRunning,
		CreatedAt:    time.Now().UTC(),
		TrafficSplit: split,
		variants:     make(map[string]*variantState, len(variants)),
		participants: make(map[string]string),
	}
	for name, versionID := range variants {
		exp.variants[name] = &variantState{versionID: versionID}
	}

	m.mu.Lock()
	m.experiments[exp.ID] = exp
	m.mu.Unlock()

	m.audit(ctx, audit.EventTypeExperimentCreated, exp.ID, "experiment created", nil)
	m.logger.Info().Str("experiment_id", exp.ID).Int("variants", len(variants)).Msg("experiment created")
	return exp, nil
}

// Assign returns the subject's variant, assigning on first contact by
// stable hash bucketing. A subject is never reassigned while the experiment
// runs, regardless of split or variant changes elsewhere.
func (m *Manager) Assign(experimentID, subjectID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experimentID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	if exp.Status != StatusRunning {
		return "", fmt.Errorf("%w: %s", ErrClosed, experimentID)
	}

	if variant, ok := exp.participants[subjectID]; ok {
		return variant, nil
	}

	bucket := int(xxhash.Sum64String(experimentID+":"+subjectID) % 100)
	variant := exp.bucketVariant(bucket)
	exp.participants[subjectID] = variant
	metrics.ExperimentAssignments.WithLabelValues(experimentID, variant).Inc()
	return variant, nil
}

// bucketVariant maps a bucket in [0,100) onto the split, walking variant
// names in sorted order so the mapping is stable.
func (e *Experiment) bucketVariant(bucket int) string {
	names := make([]string, 0, len(e.TrafficSplit))
	for name := range e.TrafficSplit {
		names = append(names, name)
	}
	sort.Strings(names)

	cum := 0
	for _, name := range names {
		cum += e.TrafficSplit[name]
		if bucket < cum {
			return name
		}
	}
	return names[len(names)-1]
}

// RecordOutcome accumulates one observation for a variant: the success
// metric value plus the operational guardrail signals.
func (m *Manager) RecordOutcome(experimentID, variant string, value float64, errored bool, latency time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experimentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	vs, ok := exp.variants[variant]
	if !ok {
		return fmt.Errorf("unknown variant %q in experiment %s", variant, experimentID)
	}

	vs.metric.add(value)
	vs.requests++
	if errored {
		vs.errors++
	}
	vs.latency += latency
	return nil
}

// Evaluate decides the experiment once both the control and the named
// treatment reach the minimum sample size: promote when the treatment beats
// control with p below the significance level AND no guardrail regressed;
// reject otherwise. The experiment closes either way.
func (m *Manager) Evaluate(ctx context.Context, experimentID, treatment string) (*Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.experiments[experimentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	if exp.Status != StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrClosed, experimentID)
	}
	control, ok := exp.variants[ControlVariant]
	if !ok {
		return nil, fmt.Errorf("experiment %s has no control", experimentID)
	}
	treat, ok := exp.variants[treatment]
	if !ok {
		return nil, fmt.Errorf("unknown variant %q in experiment %s", treatment, experimentID)
	}

	if control.metric.n < m.cfg.MinSampleSize || treat.metric.n < m.cfg.MinSampleSize {
		return nil, fmt.Errorf("%w: control %d, treatment %d, need %d",
			ErrInsufficientSamples, control.metric.n, treat.metric.n, m.cfg.MinSampleSize)
	}

	_, _, p := welch(&treat.metric, &control.metric)
	improved := treat.metric.mean() > control.metric.mean()

	decision := &Decision{PValue: p, VersionID: treat.versionID}
	if gv := m.checkGuardrails(control, treat); gv != nil {
		decision.Reason = gv.Error()
	} else if !improved {
		decision.Reason = fmt.Sprintf("treatment mean %.4f does not beat control %.4f",
			treat.metric.mean(), control.metric.mean())
	} else if p >= m.cfg.SignificanceLevel {
		decision.Reason = fmt.Sprintf("p-value %.4f above significance level %.2f", p, m.cfg.SignificanceLevel)
	} else {
		decision.Promote = true
		decision.Reason = fmt.Sprintf("treatment beats control, p-value %.4f", p)
	}

	details := map[string]string{
		"treatment": treatment,
		"p_value":   fmt.Sprintf("%.4f", p),
		"reason":    decision.Reason,
	}
	if decision.Promote {
		exp.Status = StatusPromoted
		m.audit(ctx, audit.EventTypeExperimentPromoted, exp.ID, "experiment promoted", details)
	} else {
		exp.Status = StatusRejected
		m.audit(ctx, audit.EventTypeExperimentRejected, exp.ID, "experiment rejected", details)
	}
	m.audit(ctx, audit.EventTypeExperimentClosed, exp.ID, "experiment closed", nil)
	m.logger.Info().
		Str("experiment_id", exp.ID).
		Bool("promote", decision.Promote).
		Str("reason", decision.Reason).
		Msg("experiment decided")
	return decision, nil
}

// checkGuardrails compares treatment operational metrics against control
// with the configured allowances.
func (m *Manager) checkGuardrails(control, treat *variantState) *GuardrailViolation {
	if treat.errorRate() > control.errorRate()*(1+m.cfg.MaxErrorRateRegression)+1e-9 {
		return &GuardrailViolation{
			Guardrail: "error_rate",
			Control:   control.errorRate(),
			Treatment: treat.errorRate(),
		}
	}
	if control.meanLatency() > 0 &&
		treat.meanLatency() > control.meanLatency()*(1+m.cfg.MaxLatencyRegression) {
		return &GuardrailViolation{
			Guardrail: "latency",
			Control:   control.meanLatency(),
			Treatment: treat.meanLatency(),
		}
	}
	return nil
}

// Get returns an experiment by ID.
func (m *Manager) Get(experimentID string) (*Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[experimentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	return exp, nil
}

// Participants returns how many subjects an experiment has assigned.
func (m *Manager) Participants(experimentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[experimentID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, experimentID)
	}
	return len(exp.participants), nil
}

// RemoveParticipant erases a subject from every experiment (erasure path).
// Returns how many experiments the subject was removed from.
func (m *Manager) RemoveParticipant(subjectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, exp := range m.experiments {
		if _, ok := exp.participants[subjectID]; ok {
			delete(exp.participants, subjectID)
			removed++
		}
	}
	return removed
}

func (m *Manager) audit(ctx context.Context, typ audit.EventType, id, msg string, details map[string]string) {
	if m.auditlog != nil {
		m.auditlog.Entry(ctx, typ, id, msg, details)
	}
}

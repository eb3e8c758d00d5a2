// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func createExperiment(t *testing.T, m *Manager, controlPct, treatmentPct int) *Experiment {
	t.Helper()
	exp, err := m.Create(context.Background(),
		map[string]string{ControlVariant: "v-control", "treatment": "v-treatment"},
		map[string]int{ControlVariant: controlPct, "treatment": treatmentPct})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return exp
}

func TestCreateValidation(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		variants map[string]string
		split    map[string]int
	}{
		{
			name:     "missing control",
			variants: map[string]string{"a": "v1", "b": "v2"},
			split:    map[string]int{"a": 50, "b": 50},
		},
		{
			name:     "single variant",
			variants: map[string]string{ControlVariant: "v1"},
			split:    map[string]int{ControlVariant: 100},
		},
		{
			name:     "split not 100",
			variants: map[string]string{ControlVariant: "v1", "t": "v2"},
			split:    map[string]int{ControlVariant: 50, "t": 40},
		},
		{
			name:     "split names unknown variant",
			variants: map[string]string{ControlVariant: "v1", "t": "v2"},
			split:    map[string]int{ControlVariant: 50, "x": 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Create(ctx, tt.variants, tt.split); err == nil {
				t.Error("Create() accepted an invalid experiment")
			}
		})
	}
}

func TestAssignStable(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 50, 50)

	// Ten thousand subjects, assigned twice each: every subject keeps its
	// variant.
	const subjects = 10000
	first := make(map[string]string, subjects)
	for i := 0; i < subjects; i++ {
		id := fmt.Sprintf("subj-%d", i)
		v, err := m.Assign(exp.ID, id)
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		first[id] = v
	}
	for i := 0; i < subjects; i++ {
		id := fmt.Sprintf("subj-%d", i)
		v, err := m.Assign(exp.ID, id)
		if err != nil {
			t.Fatalf("re-Assign() error = %v", err)
		}
		if v != first[id] {
			t.Fatalf("subject %s reassigned from %s to %s", id, first[id], v)
		}
	}

	n, err := m.Participants(exp.ID)
	if err != nil {
		t.Fatalf("Participants() error = %v", err)
	}
	if n != subjects {
		t.Errorf("Participants() = %d, want %d", n, subjects)
	}
}

func TestAssignRespectsSplit(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 80, 20)

	counts := map[string]int{}
	const subjects = 10000
	for i := 0; i < subjects; i++ {
		v, err := m.Assign(exp.ID, fmt.Sprintf("subj-%d", i))
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		counts[v]++
	}

	treatShare := float64(counts["treatment"]) / subjects
	if math.Abs(treatShare-0.2) > 0.03 {
		t.Errorf("treatment share = %v, want about 0.2", treatShare)
	}
}

func TestWelchDetectsDifference(t *testing.T) {
	a := &sample{}
	b := &sample{}
	// Clearly separated near-constant samples.
	for i := 0; i < 300; i++ {
		a.add(0.7 + 0.01*float64(i%10))
		b.add(0.5 + 0.01*float64(i%10))
	}

	_, _, p := welch(a, b)
	if p >= 0.001 {
		t.Errorf("p-value = %v for clearly different samples, want < 0.001", p)
	}
}

func TestWelchIdenticalSamples(t *testing.T) {
	a := &sample{}
	b := &sample{}
	for i := 0; i < 300; i++ {
		v := 0.5 + 0.01*float64(i%10)
		a.add(v)
		b.add(v)
	}

	_, _, p := welch(a, b)
	if p < 0.9 {
		t.Errorf("p-value = %v for identical samples, want near 1", p)
	}
}

func TestEvaluatePromotes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSampleSize = 200
	m := NewManager(cfg, nil)
	exp := createExperiment(t, m, 50, 50)

	for i := 0; i < 250; i++ {
		jitter := 0.01 * float64(i%10)
		m.RecordOutcome(exp.ID, ControlVariant, 0.5+jitter, false, 10*time.Millisecond)
		m.RecordOutcome(exp.ID, "treatment", 0.65+jitter, false, 10*time.Millisecond)
	}

	d, err := m.Evaluate(context.Background(), exp.ID, "treatment")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !d.Promote {
		t.Errorf("Evaluate() did not promote: %s", d.Reason)
	}
	if d.PValue >= cfg.SignificanceLevel {
		t.Errorf("p-value = %v, want below %v", d.PValue, cfg.SignificanceLevel)
	}
	if d.VersionID != "v-treatment" {
		t.Errorf("decision version = %q, want v-treatment", d.VersionID)
	}

	got, _ := m.Get(exp.ID)
	if got.Status != StatusPromoted {
		t.Errorf("experiment status = %q, want promoted", got.Status)
	}
}

func TestEvaluateInsufficientSamples(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 50, 50)

	for i := 0; i < 50; i++ {
		m.RecordOutcome(exp.ID, ControlVariant, 0.5, false, time.Millisecond)
		m.RecordOutcome(exp.ID, "treatment", 0.7, false, time.Millisecond)
	}

	_, err := m.Evaluate(context.Background(), exp.ID, "treatment")
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Evaluate() error = %v, want ErrInsufficientSamples", err)
	}

	// The experiment stays open.
	got, _ := m.Get(exp.ID)
	if got.Status != StatusRunning {
		t.Errorf("experiment status = %q after deferred evaluation, want running", got.Status)
	}
}

func TestEvaluateGuardrailBlocksPromotion(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 50, 50)

	// The treatment wins the success metric but triples the error rate.
	for i := 0; i < 250; i++ {
		jitter := 0.01 * float64(i%10)
		m.RecordOutcome(exp.ID, ControlVariant, 0.5+jitter, i%20 == 0, 10*time.Millisecond)
		m.RecordOutcome(exp.ID, "treatment", 0.7+jitter, i%6 == 0, 10*time.Millisecond)
	}

	d, err := m.Evaluate(context.Background(), exp.ID, "treatment")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if d.Promote {
		t.Error("Evaluate() promoted despite a guardrail regression")
	}

	got, _ := m.Get(exp.ID)
	if got.Status != StatusRejected {
		t.Errorf("experiment status = %q, want rejected", got.Status)
	}
}

func TestEvaluateNotSignificant(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 50, 50)

	// Tiny difference buried in spread: must not promote.
	for i := 0; i < 250; i++ {
		spread := 0.3 * float64(i%10) / 10
		m.RecordOutcome(exp.ID, ControlVariant, 0.5+spread, false, time.Millisecond)
		m.RecordOutcome(exp.ID, "treatment", 0.501+spread*1.02, false, time.Millisecond)
	}

	d, err := m.Evaluate(context.Background(), exp.ID, "treatment")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if d.Promote {
		t.Errorf("promoted an insignificant difference (p=%v)", d.PValue)
	}
}

func TestClosedExperimentRefusesOperations(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp := createExperiment(t, m, 50, 50)

	for i := 0; i < 250; i++ {
		jitter := 0.01 * float64(i%10)
		m.RecordOutcome(exp.ID, ControlVariant, 0.5+jitter, false, time.Millisecond)
		m.RecordOutcome(exp.ID, "treatment", 0.7+jitter, false, time.Millisecond)
	}
	if _, err := m.Evaluate(context.Background(), exp.ID, "treatment"); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if _, err := m.Assign(exp.ID, "late-subject"); !errors.Is(err, ErrClosed) {
		t.Errorf("Assign() after close error = %v, want ErrClosed", err)
	}
	if _, err := m.Evaluate(context.Background(), exp.ID, "treatment"); !errors.Is(err, ErrClosed) {
		t.Errorf("second Evaluate() error = %v, want ErrClosed", err)
	}
}

func TestRemoveParticipant(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	exp1 := createExperiment(t, m, 50, 50)
	exp2 := createExperiment(t, m, 50, 50)

	m.Assign(exp1.ID, "subj-gone")
	m.Assign(exp2.ID, "subj-gone")
	m.Assign(exp1.ID, "subj-stays")

	if removed := m.RemoveParticipant("subj-gone"); removed != 2 {
		t.Errorf("RemoveParticipant() = %d, want 2", removed)
	}
	if n, _ := m.Participants(exp1.ID); n != 1 {
		t.Errorf("exp1 participants = %d after erasure, want 1", n)
	}
}

// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

import (
	"math"
	"testing"
)

func TestComputeStrengthImplicit(t *testing.T) {
	tests := []struct {
		name string
		raw  RawSignal
		want float64
	}{
		{
			name: "nothing observed",
			raw:  RawSignal{},
			want: 0,
		},
		{
			name: "click only",
			raw:  RawSignal{Clicked: true},
			want: 0.3,
		},
		{
			name: "full engagement only",
			raw:  RawSignal{EngagementSeconds: 30},
			want: 0.4,
		},
		{
			name: "partial engagement is proportional",
			raw:  RawSignal{EngagementSeconds: 15},
			want: 0.2,
		},
		{
			name: "engagement saturates past threshold",
			raw:  RawSignal{EngagementSeconds: 300},
			want: 0.4,
		},
		{
			name: "refinement only",
			raw:  RawSignal{Refined: true},
			want: 0.1,
		},
		{
			name: "completion only",
			raw:  RawSignal{Completed: true},
			want: 0.3,
		},
		{
			name: "everything caps at one",
			raw:  RawSignal{Clicked: true, EngagementSeconds: 120, Refined: true, Completed: true},
			want: 1,
		},
		{
			name: "negative engagement ignored",
			raw:  RawSignal{EngagementSeconds: -10},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStrength(KindImplicit, tt.raw)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeStrength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeStrengthExplicit(t *testing.T) {
	tests := []struct {
		name   string
		rating float64
		want   float64
	}{
		{"in range", 0.75, 0.75},
		{"zero", 0, 0},
		{"one", 1, 1},
		{"below range clamps", -0.5, 0},
		{"above range clamps", 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStrength(KindExplicit, RawSignal{Rating: tt.rating})
			if got != tt.want {
				t.Errorf("ComputeStrength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrengthAlwaysInRange(t *testing.T) {
	// Extreme raw inputs must never escape [0,1].
	extremes := []RawSignal{
		{Clicked: true, EngagementSeconds: math.MaxFloat64, Refined: true, Completed: true},
		{EngagementSeconds: -math.MaxFloat64},
		{Rating: math.Inf(1)},
		{Rating: math.Inf(-1)},
	}
	for _, raw := range extremes {
		for _, kind := range []Kind{KindImplicit, KindExplicit} {
			got := ComputeStrength(kind, raw)
			if got < 0 || got > 1 {
				t.Errorf("ComputeStrength(%v, %+v) = %v, outside [0,1]", kind, raw, got)
			}
		}
	}
}

func TestUnmarshalReclampsStrength(t *testing.T) {
	data := []byte(`{"schema_version":1,"id":"s1","subject_id":"p1","kind":"implicit","target_id":"tool-1","strength":4.2,"timestamp":"2026-01-02T03:04:05Z"}`)
	s, err := UnmarshalSignal(data)
	if err != nil {
		t.Fatalf("UnmarshalSignal() error = %v", err)
	}
	if s.Strength != 1 {
		t.Errorf("Strength = %v after decode, want clamped to 1", s.Strength)
	}
}

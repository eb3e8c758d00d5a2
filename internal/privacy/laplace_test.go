// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package privacy

import (
	"math"
	"testing"
)

func TestLaplaceMeanAbsoluteDeviation(t *testing.T) {
	// For Laplace(scale b), E[|X|] = b. The sample mean over many draws
	// should land close to the scale.
	const (
		scale   = 2.0
		samples = 20000
	)

	var sumAbs float64
	for i := 0; i < samples; i++ {
		x, err := laplace(scale)
		if err != nil {
			t.Fatalf("laplace() error = %v", err)
		}
		sumAbs += math.Abs(x)
	}
	got := sumAbs / samples
	if math.Abs(got-scale) > 0.15*scale {
		t.Errorf("mean |noise| = %v, want within 15%% of scale %v", got, scale)
	}
}

func TestLaplaceRoughlySymmetric(t *testing.T) {
	const samples = 20000
	pos := 0
	for i := 0; i < samples; i++ {
		x, err := laplace(1.0)
		if err != nil {
			t.Fatalf("laplace() error = %v", err)
		}
		if x > 0 {
			pos++
		}
	}
	frac := float64(pos) / samples
	if frac < 0.45 || frac > 0.55 {
		t.Errorf("positive fraction = %v, want near 0.5", frac)
	}
}

func TestLaplaceNotDeterministic(t *testing.T) {
	a, err := laplace(1.0)
	if err != nil {
		t.Fatalf("laplace() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		b, err := laplace(1.0)
		if err != nil {
			t.Fatalf("laplace() error = %v", err)
		}
		if a != b {
			return
		}
	}
	t.Error("ten consecutive samples were identical; noise is not randomized")
}

func TestUniformInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		u, err := uniform()
		if err != nil {
			t.Fatalf("uniform() error = %v", err)
		}
		if u <= 0 || u >= 1 {
			t.Fatalf("uniform() = %v, want in (0,1)", u)
		}
	}
}

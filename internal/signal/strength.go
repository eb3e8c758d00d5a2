// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

// Strength heuristic weights. Contributions are summed and capped at 1.0.
const (
	clickWeight      = 0.3
	engagementWeight = 0.4
	refineWeight     = 0.1
	completionWeight = 0.3

	// engagementThreshold is the dwell time (seconds) above which the
	// engagement contribution is earned in full. Shorter dwells earn a
	// proportional share.
	engagementThreshold = 30.0
)

// ComputeStrength reduces a raw interaction to a normalized strength in
// [0,1].
//
// Implicit signals use the weighted heuristic: click-through 0.3,
// engagement time 0.4 (threshold-based), query refinement 0.1, successful
// completion 0.3, summed and capped at 1.0. Explicit signals use the
// caller-provided rating, clamped.
func ComputeStrength(kind Kind, raw RawSignal) float64 {
	if kind == KindExplicit {
		return clamp01(raw.Rating)
	}

	var strength float64
	if raw.Clicked {
		strength += clickWeight
	}
	if raw.EngagementSeconds > 0 {
		share := raw.EngagementSeconds / engagementThreshold
		if share > 1 {
			share = 1
		}
		strength += engagementWeight * share
	}
	if raw.Refined {
		strength += refineWeight
	}
	if raw.Completed {
		strength += completionWeight
	}
	return clamp01(strength)
}

// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package canary

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/aitoolsdir/curator/internal/recommend"
)

// Router buckets the rollout stage's share of serving traffic onto the
// version being rolled out. Outcomes from routed requests feed the recorder
// the guardrails read, so health checks judge the candidate on its own
// traffic rather than the incumbent's.
type Router struct {
	controller *Controller
	recorder   *Recorder
}

// NewRouter creates a serving router for the controller's rollouts.
func NewRouter(controller *Controller, recorder *Recorder) *Router {
	return &Router{controller: controller, recorder: recorder}
}

// Route sends the subject to the canary version when its stable bucket
// falls inside the current stage percentage. No rollout in flight means no
// routing.
func (r *Router) Route(subjectID string) (recommend.Routed, bool) {
	versionID, pct := r.controller.Current()
	if versionID == "" || pct <= 0 {
		return recommend.Routed{}, false
	}
	if int(xxhash.Sum64String(subjectID)%100) >= pct {
		return recommend.Routed{}, false
	}
	return recommend.Routed{VersionID: versionID, Tag: "canary"}, true
}

// Outcome feeds one canary-served request into the guardrail recorder.
func (r *Router) Outcome(_ recommend.Routed, degraded bool, latency time.Duration) {
	r.recorder.Observe(degraded, latency)
}

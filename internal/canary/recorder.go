// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package canary

import (
	"sync"
	"time"
)

// Recorder accumulates request outcomes and drains them as Health readings.
// Each Health call snapshots and resets the counters, so readings cover the
// interval since the previous poll.
type Recorder struct {
	mu       sync.Mutex
	requests int
	errors   int
	latency  time.Duration
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe records one request outcome.
func (r *Recorder) Observe(errored bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	if errored {
		r.errors++
	}
	r.latency += latency
}

// Health returns the reading for the interval since the last call and
// resets the window.
func (r *Recorder) Health() Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Health{Requests: r.requests}
	if r.requests > 0 {
		h.ErrorRate = float64(r.errors) / float64(r.requests)
		h.MeanLatency = r.latency / time.Duration(r.requests)
	}
	r.requests, r.errors, r.latency = 0, 0, 0
	return h
}

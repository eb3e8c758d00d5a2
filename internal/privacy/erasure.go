// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package privacy

import (
	"context"
	"fmt"

	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/profile"
	"github.com/aitoolsdir/curator/internal/signal"
)

// ParticipantRemover removes a subject from running experiments.
type ParticipantRemover interface {
	RemoveParticipant(subjectID string) int
}

// ErasureReport summarizes what an erasure removed. Aggregated statistics
// and trained models are not touched: they carry no per-subject data.
type ErasureReport struct {
	SignalsErased      int  `json:"signals_erased"`
	ProfileDeleted     bool `json:"profile_deleted"`
	ExperimentsRemoved int  `json:"experiments_removed"`
}

// Eraser removes every per-subject record on request: raw signals, the
// preference profile, and experiment assignments. Erasure is keyed by
// pseudonym, so callers pseudonymize the subject token first.
type Eraser struct {
	log         signal.Log
	profiles    profile.Store
	experiments ParticipantRemover
	auditlog    *audit.Logger
}

// NewEraser creates an eraser. experiments and auditlog may be nil.
func NewEraser(log signal.Log, profiles profile.Store, experiments ParticipantRemover, auditlog *audit.Logger) *Eraser {
	return &Eraser{
		log:         log,
		profiles:    profiles,
		experiments: experiments,
		auditlog:    auditlog,
	}
}

// Erase removes all records for a pseudonymous subject. Partial failures
// return an error with whatever was already removed reported, so the caller
// can retry: every step is idempotent.
func (e *Eraser) Erase(ctx context.Context, subjectID string) (ErasureReport, error) {
	var report ErasureReport

	n, err := e.log.EraseSubject(ctx, subjectID)
	if err != nil {
		return report, fmt.Errorf("erase signals for %s: %w", subjectID, err)
	}
	report.SignalsErased = n

	if err := e.profiles.Delete(ctx, subjectID); err != nil {
		return report, fmt.Errorf("delete profile for %s: %w", subjectID, err)
	}
	report.ProfileDeleted = true

	if e.experiments != nil {
		report.ExperimentsRemoved = e.experiments.RemoveParticipant(subjectID)
	}

	if e.auditlog != nil {
		e.auditlog.Entry(ctx, audit.EventTypeSubjectErased, subjectID, "subject data erased",
			map[string]string{
				"signals":     fmt.Sprintf("%d", report.SignalsErased),
				"experiments": fmt.Sprintf("%d", report.ExperimentsRemoved),
			})
	}
	return report, nil
}

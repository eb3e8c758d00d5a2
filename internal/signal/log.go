// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Log is the append-only persistence contract for feedback signals. Signals
// are appended at ingest, marked archived once aggregated, purged after the
// retention window, and erased wholesale on a subject's erasure request.
type Log interface {
	// Append persists one signal.
	Append(ctx context.Context, s *FeedbackSignal) error

	// MarkArchived flags signals as aggregated.
	MarkArchived(ctx context.Context, ids []string) error

	// PurgeArchivedBefore removes archived signals older than cutoff and
	// returns how many were removed.
	PurgeArchivedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// EraseSubject removes every signal for a pseudonymous subject,
	// archived or not, and returns how many were removed.
	EraseSubject(ctx context.Context, subjectID string) (int, error)

	// Close releases log resources.
	Close() error
}

// Key prefixes for badger storage.
const (
	signalKeyPrefix  = "signal:"
	subjectKeyPrefix = "signal_subject:"
)

// BadgerLog implements Log on badger for durable storage across restarts.
type BadgerLog struct {
	db *badger.DB
}

// NewBadgerLog creates a badger-backed signal log.
func NewBadgerLog(db *badger.DB) *BadgerLog {
	return &BadgerLog{db: db}
}

// Append persists one signal plus a subject index entry for erasure.
func (l *BadgerLog) Append(_ context.Context, s *FeedbackSignal) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(signalKeyPrefix+s.ID), data); err != nil {
			return fmt.Errorf("set signal: %w", err)
		}
		subjectKey := []byte(subjectKeyPrefix + s.SubjectID + ":" + s.ID)
		if err := txn.Set(subjectKey, []byte(s.ID)); err != nil {
			return fmt.Errorf("set subject index: %w", err)
		}
		return nil
	})
	if err != nil {
		return &TransientStorageError{Op: "append", Err: err}
	}
	return nil
}

// MarkArchived flags signals as aggregated.
func (l *BadgerLog) MarkArchived(_ context.Context, ids []string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get([]byte(signalKeyPrefix + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var s FeedbackSignal
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			s.Archived = true
			data, err := json.Marshal(&s)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(signalKeyPrefix+id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &TransientStorageError{Op: "mark_archived", Err: err}
	}
	return nil
}

// PurgeArchivedBefore removes archived signals older than cutoff.
func (l *BadgerLog) PurgeArchivedBefore(_ context.Context, cutoff time.Time) (int, error) {
	var doomed []FeedbackSignal

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(signalKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s FeedbackSignal
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			if s.Archived && s.Timestamp.Before(cutoff) {
				doomed = append(doomed, s)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &TransientStorageError{Op: "purge_scan", Err: err}
	}

	for _, s := range doomed {
		err := l.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete([]byte(signalKeyPrefix + s.ID)); err != nil {
				return err
			}
			return txn.Delete([]byte(subjectKeyPrefix + s.SubjectID + ":" + s.ID))
		})
		if err != nil {
			return 0, &TransientStorageError{Op: "purge_delete", Err: err}
		}
	}
	return len(doomed), nil
}

// EraseSubject removes all of a subject's signals via the subject index.
func (l *BadgerLog) EraseSubject(_ context.Context, subjectID string) (int, error) {
	var signalIDs []string

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(subjectKeyPrefix + subjectID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			signalIDs = append(signalIDs, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return 0, &TransientStorageError{Op: "erase_scan", Err: err}
	}

	for _, id := range signalIDs {
		err := l.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete([]byte(signalKeyPrefix + id)); err != nil {
				return err
			}
			return txn.Delete([]byte(subjectKeyPrefix + subjectID + ":" + id))
		})
		if err != nil {
			return 0, &TransientStorageError{Op: "erase_delete", Err: err}
		}
	}
	return len(signalIDs), nil
}

// Close is a no-op; the shared badger handle is owned by the caller.
func (l *BadgerLog) Close() error { return nil }

// MemoryLog implements Log in memory for tests and ephemeral deployments.
type MemoryLog struct {
	mu      sync.RWMutex
	signals map[string]*FeedbackSignal

	// failAppends makes Append fail, for exercising retry and DLQ paths.
	failAppends bool
}

// NewMemoryLog creates an empty in-memory signal log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{signals: make(map[string]*FeedbackSignal)}
}

// FailAppends toggles injected append failures.
func (l *MemoryLog) FailAppends(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAppends = fail
}

// Append persists one signal.
func (l *MemoryLog) Append(_ context.Context, s *FeedbackSignal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAppends {
		return &TransientStorageError{Op: "append", Err: fmt.Errorf("injected failure")}
	}
	cp := *s
	l.signals[s.ID] = &cp
	return nil
}

// MarkArchived flags signals as aggregated.
func (l *MemoryLog) MarkArchived(_ context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if s, ok := l.signals[id]; ok {
			s.Archived = true
		}
	}
	return nil
}

// PurgeArchivedBefore removes archived signals older than cutoff.
func (l *MemoryLog) PurgeArchivedBefore(_ context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, s := range l.signals {
		if s.Archived && s.Timestamp.Before(cutoff) {
			delete(l.signals, id)
			n++
		}
	}
	return n, nil
}

// EraseSubject removes every signal for a subject.
func (l *MemoryLog) EraseSubject(_ context.Context, subjectID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, s := range l.signals {
		if s.SubjectID == subjectID {
			delete(l.signals, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the memory log.
func (l *MemoryLog) Close() error { return nil }

// Get returns a stored signal by ID (test helper).
func (l *MemoryLog) Get(id string) (*FeedbackSignal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.signals[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Len returns the number of stored signals.
func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.signals)
}

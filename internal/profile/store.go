// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound is returned when no profile exists for a subject.
var ErrNotFound = errors.New("profile not found")

// ErrVersionConflict is returned when a write carries a stale version.
// Callers re-read and retry.
var ErrVersionConflict = errors.New("profile version conflict")

// Store is the key-value persistence contract for profiles.
type Store interface {
	// Get returns the profile for a subject, or ErrNotFound.
	Get(ctx context.Context, subjectID string) (*UserProfile, error)

	// Put writes a profile. The submitted Version must match the stored
	// one (0 for a new profile) or ErrVersionConflict is returned; on
	// success the stored version is incremented.
	Put(ctx context.Context, p *UserProfile) error

	// Delete removes a subject's profile. Deleting a missing profile is
	// not an error.
	Delete(ctx context.Context, subjectID string) error

	// Close releases store resources.
	Close() error
}

const profileKeyPrefix = "profile:"

// BadgerStore implements Store on badger.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a badger-backed profile store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the profile for a subject.
func (s *BadgerStore) Get(_ context.Context, subjectID string) (*UserProfile, error) {
	var p UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profileKeyPrefix + subjectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Put writes a profile with optimistic version checking inside one badger
// transaction.
func (s *BadgerStore) Put(_ context.Context, p *UserProfile) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(profileKeyPrefix + p.SubjectID)

		var storedVersion uint64
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			storedVersion = 0
		case err != nil:
			return fmt.Errorf("read profile: %w", err)
		default:
			var stored UserProfile
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			storedVersion = stored.Version
		}

		if p.Version != storedVersion {
			return ErrVersionConflict
		}

		next := p.Clone()
		next.Version = storedVersion + 1
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set profile: %w", err)
		}
		p.Version = next.Version
		return nil
	})
}

// Delete removes a subject's profile.
func (s *BadgerStore) Delete(_ context.Context, subjectID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(profileKeyPrefix + subjectID))
	})
}

// Close is a no-op; the shared badger handle is owned by the caller.
func (s *BadgerStore) Close() error { return nil }

// MemoryStore implements Store in memory for tests and ephemeral use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*UserProfile
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*UserProfile)}
}

// Get returns the profile for a subject.
func (s *MemoryStore) Get(_ context.Context, subjectID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Put writes a profile with optimistic version checking.
func (s *MemoryStore) Put(_ context.Context, p *UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedVersion uint64
	if stored, ok := s.profiles[p.SubjectID]; ok {
		storedVersion = stored.Version
	}
	if p.Version != storedVersion {
		return ErrVersionConflict
	}

	next := p.Clone()
	next.Version = storedVersion + 1
	s.profiles[p.SubjectID] = next
	p.Version = next.Version
	return nil
}

// Delete removes a subject's profile.
func (s *MemoryStore) Delete(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, subjectID)
	return nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored profiles (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

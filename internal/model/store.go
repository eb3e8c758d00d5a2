// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound is returned for unknown version IDs.
var ErrNotFound = errors.New("model version not found")

const versionKeyPrefix = "model:"

// Store persists versioned model blobs.
type Store interface {
	// Save writes a version, overwriting any previous blob for its ID.
	Save(ctx context.Context, v *Version) error

	// Get returns the version with the given ID.
	Get(ctx context.Context, id string) (*Version, error)

	// List returns every stored version, in unspecified order.
	List(ctx context.Context) ([]*Version, error)

	// Close releases store resources.
	Close() error
}

// BadgerStore implements Store on badger.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a badger-backed model store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Save writes a version blob.
func (s *BadgerStore) Save(_ context.Context, v *Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal version %s: %w", v.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(versionKeyPrefix+v.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save version %s: %w", v.ID, err)
	}
	return nil
}

// Get returns a version blob by ID.
func (s *BadgerStore) Get(_ context.Context, id string) (*Version, error) {
	var v Version
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(versionKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns every stored version.
func (s *BadgerStore) List(_ context.Context) ([]*Version, error) {
	var versions []*Version
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(versionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v Version
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			versions = append(versions, &v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// Close is a no-op; the shared badger handle is owned by the caller.
func (s *BadgerStore) Close() error { return nil }

// MemoryStore implements Store in memory for tests and ephemeral
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]*Version
}

// NewMemoryStore creates an empty in-memory model store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string]*Version)}
}

// Save writes a version.
func (s *MemoryStore) Save(_ context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = v.Clone()
	return nil
}

// Get returns a version by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.Clone(), nil
}

// List returns every stored version.
func (s *MemoryStore) List(_ context.Context) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := make([]*Version, 0, len(s.versions))
	for _, v := range s.versions {
		versions = append(versions, v.Clone())
	}
	return versions, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

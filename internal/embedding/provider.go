// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package embedding defines the contract for the external embedding
// provider. Curator never computes embeddings; vectors arrive as opaque
// fixed-length float slices from a provider wired in at startup.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownItem is returned for items the provider has no vector for.
var ErrUnknownItem = errors.New("no embedding for item")

// Provider supplies fixed-length vectors for catalog items. Implementations
// must be safe for concurrent use.
type Provider interface {
	// ItemVector returns the embedding for a catalog item.
	ItemVector(ctx context.Context, itemID string) ([]float32, error)

	// Dimension returns the fixed vector length.
	Dimension() int
}

// StaticProvider serves vectors from a fixed in-memory table. Used in tests
// and for deployments that sync vectors out-of-band.
type StaticProvider struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	dim     int
}

// NewStaticProvider creates a provider for vectors of the given dimension.
func NewStaticProvider(dim int) *StaticProvider {
	return &StaticProvider{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// Set stores an item vector. The vector length must match the provider
// dimension.
func (p *StaticProvider) Set(itemID string, vec []float32) error {
	if len(vec) != p.dim {
		return fmt.Errorf("vector length %d does not match dimension %d", len(vec), p.dim)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float32, len(vec))
	copy(cp, vec)
	p.vectors[itemID] = cp
	return nil
}

// ItemVector returns the embedding for a catalog item.
func (p *StaticProvider) ItemVector(_ context.Context, itemID string) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	vec, ok := p.vectors[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	return cp, nil
}

// Dimension returns the fixed vector length.
func (p *StaticProvider) Dimension() int { return p.dim }

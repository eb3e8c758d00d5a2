// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package recommend

import (
	"fmt"
	"time"

	"github.com/aitoolsdir/curator/internal/embedding"
)

// Catalog keeps the embedding provider and the similarity index in step as
// the directory's item set changes. The directory pushes item updates here
// (admin endpoint or sync job); serving reads both sides.
type Catalog struct {
	index      *Index
	embeddings *embedding.StaticProvider
}

// NewCatalog creates a catalog over the given index and provider.
func NewCatalog(index *Index, embeddings *embedding.StaticProvider) *Catalog {
	return &Catalog{index: index, embeddings: embeddings}
}

// Upsert adds or replaces one catalog item in both the provider (for the
// real-time profile path) and the index (for serving).
func (c *Catalog) Upsert(id, category string, createdAt time.Time, vec []float32) error {
	if id == "" {
		return fmt.Errorf("empty item ID")
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if err := c.embeddings.Set(id, vec); err != nil {
		return fmt.Errorf("set embedding for %s: %w", id, err)
	}
	if err := c.index.Upsert(id, category, createdAt, vec); err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	return nil
}

// Remove deletes one item from the index. The provider keeps its vector;
// an orphaned embedding is harmless and the next Upsert overwrites it.
func (c *Catalog) Remove(id string) {
	c.index.Remove(id)
}

// Len returns the number of cataloged items.
func (c *Catalog) Len() int { return c.index.Len() }

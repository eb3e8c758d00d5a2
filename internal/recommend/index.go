// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package recommend serves ranked candidate lists: cosine top-K shortlist
// over the item embedding index, learned scoring with the active model's
// weights, category-cap diversity reranking, and business filtering. Results
// are deterministic for an identical (profile snapshot, model version,
// context) triple; any personalized-path failure degrades to the popularity
// fallback instead of surfacing an error.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Item is one catalog entry in the similarity index.
type Item struct {
	ID        string
	Category  string
	CreatedAt time.Time

	// vec is the unit-normalized embedding.
	vec []float32
}

// Match is one shortlist hit.
type Match struct {
	Item       Item
	Similarity float64 // cosine, in [-1,1]
}

// Index is an in-memory cosine similarity index over item embeddings.
// Vectors are normalized at insert so a query reduces to dot products.
type Index struct {
	mu    sync.RWMutex
	dim   int
	items map[string]Item
	rev   uint64
}

// NewIndex creates an index for vectors of the given dimension.
func NewIndex(dim int) *Index {
	return &Index{dim: dim, items: make(map[string]Item)}
}

// Upsert adds or replaces an item.
func (ix *Index) Upsert(id, category string, createdAt time.Time, vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("vector length %d does not match index dimension %d", len(vec), ix.dim)
	}
	n := normalize(vec)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.items[id] = Item{ID: id, Category: category, CreatedAt: createdAt, vec: n}
	ix.rev++
	return nil
}

// Item returns an indexed item by ID.
func (ix *Index) Item(id string) (Item, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	item, ok := ix.items[id]
	return item, ok
}

// Remove deletes an item. Unknown IDs are ignored.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.items[id]; ok {
		delete(ix.items, id)
		ix.rev++
	}
}

// Len returns the number of indexed items.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// Ref identifies the current index revision, recorded on model versions so
// a model is always paired with the index snapshot it was trained against.
func (ix *Index) Ref() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return fmt.Sprintf("idx-%d", ix.rev)
}

// TopK returns the k most similar items to the query vector, ordered by
// similarity descending with item ID as the deterministic tie-break.
func (ix *Index) TopK(query []float32, k int) ([]Match, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query length %d does not match index dimension %d", len(query), ix.dim)
	}
	q := normalize(query)

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.items))
	for _, item := range ix.items {
		matches = append(matches, Match{Item: item, Similarity: dot(q, item.vec)})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Item.ID < matches[j].Item.ID
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

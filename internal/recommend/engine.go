// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package recommend

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/metrics"
	"github.com/aitoolsdir/curator/internal/model"
	"github.com/aitoolsdir/curator/internal/profile"
)

// CapabilityPredicate reports whether an item may be shown to a subject.
// Injected by the host directory; a nil predicate allows everything.
type CapabilityPredicate func(subjectID, itemID string) bool

// Context carries per-request hints from the directory UI. It is part of
// the serving identity: the same subject with the same context and the same
// serving version gets the same page.
type Context struct {
	// Surface names where the request originates (browse page, search,
	// digest email).
	Surface string

	// Category restricts results to one catalog category when set.
	Category string
}

// Recommendation is one ranked result.
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Routed names the model version a router picked for a request. Tag is
// router-private state handed back with the outcome.
type Routed struct {
	VersionID string
	Tag       string
}

// VersionRouter diverts a share of serving traffic onto a non-active model
// version (a canary stage, an experiment variant) and receives each routed
// request's outcome. Route returning false leaves the request on the active
// version with no outcome reported.
type VersionRouter interface {
	Route(subjectID string) (Routed, bool)
	Outcome(r Routed, degraded bool, latency time.Duration)
}

// Config tunes serving.
type Config struct {
	// ShortlistSize is the top-K taken from the similarity index before
	// rescoring.
	ShortlistSize int

	// MaxPerCategory caps same-category items within one result page.
	MaxPerCategory int

	DefaultLimit int
	MaxLimit     int

	// FreshnessHalfLife controls recency decay.
	FreshnessHalfLife time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ShortlistSize:     100,
		MaxPerCategory:    2,
		DefaultLimit:      10,
		MaxLimit:          50,
		FreshnessHalfLife: 30 * 24 * time.Hour,
	}
}

// Engine serves recommendations against the active model snapshot.
type Engine struct {
	cfg       Config
	index     *Index
	pop       *Popularity
	profiles  profile.Store
	registry  *model.Registry
	predicate CapabilityPredicate
	routers   []VersionRouter
	logger    zerolog.Logger

	now func() time.Time
}

// NewEngine creates an engine. predicate may be nil.
func NewEngine(cfg Config, index *Index, pop *Popularity, profiles profile.Store, registry *model.Registry, predicate CapabilityPredicate) *Engine {
	if cfg.ShortlistSize <= 0 {
		cfg.ShortlistSize = 100
	}
	if cfg.MaxPerCategory <= 0 {
		cfg.MaxPerCategory = 2
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.FreshnessHalfLife <= 0 {
		cfg.FreshnessHalfLife = 30 * 24 * time.Hour
	}
	return &Engine{
		cfg:       cfg,
		index:     index,
		pop:       pop,
		profiles:  profiles,
		registry:  registry,
		predicate: predicate,
		logger:    logging.With("recommend"),
		now:       time.Now,
	}
}

// WithRouters wires version routers, consulted in order. The first router
// to accept a request owns it: its version serves, and it receives the
// outcome.
func (e *Engine) WithRouters(routers ...VersionRouter) *Engine {
	e.routers = append(e.routers, routers...)
	return e
}

// Recommend returns an ordered result page for the subject. Personalized-
// path failures degrade to the popularity fallback; callers never see an
// error for a missing profile or model.
func (e *Engine) Recommend(ctx context.Context, subjectID string, reqCtx Context, limit int) []Recommendation {
	start := e.now()
	limit = e.clampLimit(limit)

	prof, err := e.profiles.Get(ctx, subjectID)
	if err != nil {
		return e.fallback(subjectID, reqCtx, limit, "no_profile", start)
	}

	active, ok := e.registry.Active()
	if !ok {
		return e.fallback(subjectID, reqCtx, limit, "no_model", start)
	}

	serving, routed, router := e.route(ctx, subjectID, active)

	scored, cause := e.personalized(subjectID, reqCtx, serving, prof)
	var page []Recommendation
	if cause != "" {
		page = e.fallback(subjectID, reqCtx, limit, cause, start)
	} else {
		page = e.rerank(scored, limit)
		metrics.ObserveRecommend("personalized", start)
	}
	if router != nil {
		router.Outcome(routed, cause != "", e.now().Sub(start))
	}
	return page
}

// route asks the version routers whether this request serves a non-active
// version. A routed version that cannot be loaded falls back to active.
func (e *Engine) route(ctx context.Context, subjectID string, active *model.Version) (*model.Version, Routed, VersionRouter) {
	for _, r := range e.routers {
		routed, ok := r.Route(subjectID)
		if !ok {
			continue
		}
		if routed.VersionID == "" || routed.VersionID == active.ID {
			return active, routed, r
		}
		v, err := e.registry.Get(ctx, routed.VersionID)
		if err != nil {
			e.logger.Warn().Err(err).Str("version_id", routed.VersionID).Msg("routed version unavailable")
			return active, routed, r
		}
		return v, routed, r
	}
	return active, Routed{}, nil
}

// personalized runs the scored path. A non-empty cause means the request
// must degrade to the fallback ranking.
func (e *Engine) personalized(subjectID string, reqCtx Context, serving *model.Version, prof *profile.UserProfile) ([]scoredItem, string) {
	shortlist, err := e.index.TopK(prof.Embedding, e.cfg.ShortlistSize)
	if err != nil {
		e.logger.Warn().Err(err).Str("subject", subjectID).Str("surface", reqCtx.Surface).Msg("shortlist failed")
		return nil, "index_error"
	}

	scored := e.score(serving, prof, shortlist)
	scored = e.filter(subjectID, reqCtx, prof, scored)
	if len(scored) == 0 {
		return nil, "no_candidates"
	}
	return scored, ""
}

type scoredItem struct {
	item   Item
	score  float64
	reason string
}

// score applies the learned weights to each shortlist hit. Recency is
// measured against the serving version's creation time, not the wall clock,
// so identical inputs produce byte-identical scores on repeated calls.
func (e *Engine) score(serving *model.Version, prof *profile.UserProfile, shortlist []Match) []scoredItem {
	asOf := serving.CreatedAt
	w := serving.Weights

	scored := make([]scoredItem, 0, len(shortlist))
	for _, m := range shortlist {
		similarity := (m.Similarity + 1) / 2
		recency := math.Exp2(-float64(asOf.Sub(m.Item.CreatedAt)) / float64(e.cfg.FreshnessHalfLife))
		if recency > 1 {
			recency = 1
		}
		popularity := e.pop.Score(m.Item.ID)
		preference := 0.0
		if prof.Prefers(m.Item.Category) {
			preference = 1.0
		}

		s := w.Similarity*similarity + w.Recency*recency + w.Popularity*popularity + w.Preference*preference
		if len(serving.Personalization) > 0 {
			bucket := xxhash.Sum64String(m.Item.ID) % uint64(len(serving.Personalization))
			s += float64(serving.Personalization[bucket])
		}
		if s < 0 {
			s = 0
		}

		scored = append(scored, scoredItem{
			item:   m.Item,
			score:  s,
			reason: reason(w, similarity, recency, popularity, preference),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].item.ID < scored[j].item.ID
	})
	return scored
}

// filter applies the request's category restriction, blocked categories,
// and the capability predicate.
func (e *Engine) filter(subjectID string, reqCtx Context, prof *profile.UserProfile, scored []scoredItem) []scoredItem {
	kept := scored[:0:0]
	for _, s := range scored {
		if reqCtx.Category != "" && s.item.Category != reqCtx.Category {
			continue
		}
		if prof.Blocks(s.item.Category) {
			continue
		}
		if e.predicate != nil && !e.predicate(subjectID, s.item.ID) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// rerank enforces the category cap within the result page. Items pushed out
// by the cap backfill the page only if room remains after capped selection.
func (e *Engine) rerank(scored []scoredItem, limit int) []Recommendation {
	page := make([]Recommendation, 0, limit)
	perCategory := make(map[string]int)
	var overflow []scoredItem

	for _, s := range scored {
		if len(page) == limit {
			break
		}
		if perCategory[s.item.Category] >= e.cfg.MaxPerCategory {
			overflow = append(overflow, s)
			continue
		}
		perCategory[s.item.Category]++
		page = append(page, Recommendation{ItemID: s.item.ID, Score: s.score, Reason: s.reason})
	}
	for _, s := range overflow {
		if len(page) == limit {
			break
		}
		page = append(page, Recommendation{ItemID: s.item.ID, Score: s.score, Reason: s.reason})
	}
	return page
}

// fallback serves the non-personalized popularity ranking.
func (e *Engine) fallback(subjectID string, reqCtx Context, limit int, cause string, start time.Time) []Recommendation {
	metrics.RecommendFallbacks.WithLabelValues(cause).Inc()

	results := make([]Recommendation, 0, limit)
	for _, id := range e.pop.Top(e.cfg.ShortlistSize) {
		if len(results) == limit {
			break
		}
		if reqCtx.Category != "" {
			if item, ok := e.index.Item(id); !ok || item.Category != reqCtx.Category {
				continue
			}
		}
		if e.predicate != nil && !e.predicate(subjectID, id) {
			continue
		}
		results = append(results, Recommendation{
			ItemID: id,
			Score:  e.pop.Score(id),
			Reason: "popular right now",
		})
	}

	metrics.ObserveRecommend("fallback", start)
	return results
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// reason names the dominant weighted contribution, so callers can show why
// an item ranked where it did.
func reason(w model.Weights, similarity, recency, popularity, preference float64) string {
	best, label := w.Similarity*similarity, "matches your interests"
	if c := w.Preference * preference; c > best {
		best, label = c, "in a category you prefer"
	}
	if c := w.Popularity * popularity; c > best {
		best, label = c, "popular right now"
	}
	if c := w.Recency * recency; c > best {
		label = "recently added"
	}
	return label
}

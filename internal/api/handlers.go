// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/privacy"
	"github.com/aitoolsdir/curator/internal/recommend"
	"github.com/aitoolsdir/curator/internal/signal"
)

// SubjectTokenHeader carries the caller-side subject identifier. It is
// pseudonymized at the edge; the raw token never reaches storage.
const SubjectTokenHeader = "X-Subject-Token"

// maxBodyBytes bounds feedback request bodies.
const maxBodyBytes = 64 << 10

// Handler implements the HTTP endpoints.
type Handler struct {
	collector *signal.Collector
	pseudo    *signal.Pseudonymizer
	engine    *recommend.Engine
	eraser    *privacy.Eraser
	catalog   *recommend.Catalog

	ready  func() bool
	logger zerolog.Logger
}

// NewHandler creates the endpoint handler. ready may be nil, in which case
// the service is always reported ready.
func NewHandler(collector *signal.Collector, pseudo *signal.Pseudonymizer, engine *recommend.Engine, eraser *privacy.Eraser, catalog *recommend.Catalog, ready func() bool) *Handler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		collector: collector,
		pseudo:    pseudo,
		engine:    engine,
		eraser:    eraser,
		catalog:   catalog,
		ready:     ready,
		logger:    logging.With("api"),
	}
}

// SubmitFeedback handles POST /api/v1/feedback. New signals are accepted
// with 202; resubmitted idempotency keys acknowledge the original with 200.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var ev signal.Event
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	ack, err := h.collector.Submit(r.Context(), &ev)
	switch {
	case err == nil:
	case signal.IsValidation(err):
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	case errors.Is(err, signal.ErrRateLimited):
		rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, "feedback rate limit exceeded")
		return
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("feedback submission failed")
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "feedback could not be stored")
		return
	}

	if ack.Duplicate {
		rw.Success(ack)
		return
	}
	rw.SuccessStatus(http.StatusAccepted, ack)
}

// Recommendations handles GET /api/v1/recommendations. The subject token
// arrives in a header and is pseudonymized before any lookup; an unknown or
// cold subject gets the popularity fallback rather than an error. surface
// and category query parameters carry the request context.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	token := r.Header.Get(SubjectTokenHeader)
	if token == "" {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "missing "+SubjectTokenHeader+" header")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	reqCtx := recommend.Context{
		Surface:  r.URL.Query().Get("surface"),
		Category: r.URL.Query().Get("category"),
	}

	subjectID := h.pseudo.Pseudonymize(token)
	recs := h.engine.Recommend(r.Context(), subjectID, reqCtx, limit)
	rw.Success(recs)
}

// itemRequest is the catalog sync payload.
type itemRequest struct {
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// UpsertItem handles PUT /api/v1/items/{id}: the directory's catalog sync
// push. The embedding and category land in both the provider and the
// serving index.
func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if id == "" {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "missing item ID")
		return
	}

	var req itemRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}
	if len(req.Embedding) == 0 {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, "embedding is required")
		return
	}

	if err := h.catalog.Upsert(id, req.Category, req.CreatedAt, req.Embedding); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}
	rw.Success(map[string]string{"item_id": id})
}

// RemoveItem handles DELETE /api/v1/items/{id}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if id == "" {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "missing item ID")
		return
	}
	h.catalog.Remove(id)
	rw.Success(map[string]string{"item_id": id})
}

// EraseSubject handles DELETE /api/v1/subjects/{token}: the right-to-be-
// forgotten path. The token is pseudonymized the same way ingestion does it,
// so the erasure reaches exactly the records that subject produced.
func (h *Handler) EraseSubject(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	token := chi.URLParam(r, "token")
	if token == "" {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "missing subject token")
		return
	}

	subjectID := h.pseudo.Pseudonymize(token)
	report, err := h.eraser.Erase(r.Context(), subjectID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("subject erasure failed")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "erasure incomplete, retry")
		return
	}
	rw.Success(report)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// HealthReady handles GET /api/v1/health/ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.ready() {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

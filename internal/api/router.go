// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aitoolsdir/curator/internal/logging"
)

// RequestIDHeader is returned on every response for request correlation.
const RequestIDHeader = "X-Request-ID"

// correlationID attaches a correlation ID to the request context and echoes
// it in the response headers. An incoming X-Request-ID is honored so IDs
// survive proxies.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.NewCorrelationID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

// NewRouter assembles the HTTP surface. requestsPerMinute is the per-client
// rate limit on the data endpoints; health and metrics are unlimited so
// monitoring keeps working under load.
func NewRouter(h *Handler, requestsPerMinute int) http.Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}

	r := chi.NewRouter()
	r.Use(correlationID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))

		r.Post("/feedback", h.SubmitFeedback)
		r.Get("/recommendations", h.Recommendations)
		r.Put("/items/{id}", h.UpsertItem)
		r.Delete("/items/{id}", h.RemoveItem)
		r.Delete("/subjects/{token}", h.EraseSubject)
	})

	return r
}

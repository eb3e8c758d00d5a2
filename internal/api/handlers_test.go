// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/aitoolsdir/curator/internal/embedding"
	"github.com/aitoolsdir/curator/internal/model"
	"github.com/aitoolsdir/curator/internal/privacy"
	"github.com/aitoolsdir/curator/internal/profile"
	"github.com/aitoolsdir/curator/internal/recommend"
	"github.com/aitoolsdir/curator/internal/signal"
)

type fakeBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *fakeBus) Publish(_ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

type fixture struct {
	router http.Handler
	log    *signal.MemoryLog
	index  *recommend.Index
	ready  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pseudo, err := signal.NewPseudonymizer("test-only-key")
	if err != nil {
		t.Fatal(err)
	}
	log := signal.NewMemoryLog()
	collector := signal.NewCollector(signal.CollectorConfig{
		RatePerSecond: 10000,
		RateBurst:     10000,
	}, pseudo, log, &fakeBus{})

	registry, err := model.NewRegistry(context.Background(), model.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	index := recommend.NewIndex(4)
	for _, id := range []string{"tool-a", "tool-b", "tool-c"} {
		if err := index.Upsert(id, "writing", time.Now(), []float32{1, 0, 0, 0}); err != nil {
			t.Fatal(err)
		}
	}
	pop := recommend.NewPopularity(0)
	pop.Record("tool-a", 5)
	pop.Record("tool-b", 3)
	engine := recommend.NewEngine(recommend.Config{}, index, pop, profile.NewMemoryStore(), registry, nil)

	eraser := privacy.NewEraser(log, profile.NewMemoryStore(), nil, nil)
	catalog := recommend.NewCatalog(index, embedding.NewStaticProvider(4))

	f := &fixture{log: log, index: index, ready: true}
	h := NewHandler(collector, pseudo, engine, eraser, catalog, func() bool { return f.ready })
	f.router = NewRouter(h, 100000)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response %q is not an envelope: %v", rec.Body.String(), err)
	}
	return rec, &env
}

func feedbackBody(idempotencyKey string) string {
	return `{
		"subject_token": "user-42",
		"kind": "implicit",
		"target_id": "tool-a",
		"raw_signal": {"clicked": true, "engagement_seconds": 15},
		"idempotency_key": "` + idempotencyKey + `"
	}`
}

func TestSubmitFeedbackAccepted(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/feedback", feedbackBody("key-1"), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("success = false: %+v", env.Error)
	}

	var ack signal.Ack
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.SignalID == "" || ack.Duplicate {
		t.Errorf("ack = %+v, want fresh signal ID", ack)
	}
	if f.log.Len() != 1 {
		t.Errorf("log holds %d signals, want 1", f.log.Len())
	}
}

func TestSubmitFeedbackDuplicate(t *testing.T) {
	f := newFixture(t)

	rec1, env1 := f.do(t, http.MethodPost, "/api/v1/feedback", feedbackBody("key-dup"), nil)
	rec2, env2 := f.do(t, http.MethodPost, "/api/v1/feedback", feedbackBody("key-dup"), nil)
	if rec1.Code != http.StatusAccepted || rec2.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d, want 202 then 200", rec1.Code, rec2.Code)
	}

	var ack1, ack2 signal.Ack
	if err := json.Unmarshal(env1.Data, &ack1); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(env2.Data, &ack2); err != nil {
		t.Fatal(err)
	}
	if !ack2.Duplicate || ack2.SignalID != ack1.SignalID {
		t.Errorf("duplicate ack = %+v, want original signal %s", ack2, ack1.SignalID)
	}
	if f.log.Len() != 1 {
		t.Errorf("log holds %d signals after duplicate, want 1", f.log.Len())
	}
}

func TestSubmitFeedbackValidation(t *testing.T) {
	f := newFixture(t)

	body := `{"subject_token": "user-42", "kind": "implicit", "idempotency_key": "k"}`
	rec, env := f.do(t, http.MethodPost, "/api/v1/feedback", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v, want %s", env.Error, ErrCodeValidationFailed)
	}
}

func TestSubmitFeedbackMalformedBody(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/api/v1/feedback", "{not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("error = %+v, want %s", env.Error, ErrCodeBadRequest)
	}
}

func TestRecommendationsRequireSubjectToken(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/recommendations", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestRecommendationsColdSubjectGetsFallback(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/recommendations?limit=2", "",
		map[string]string{SubjectTokenHeader: "new-user"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var recs []recommend.Recommendation
	if err := json.Unmarshal(env.Data, &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	if recs[0].ItemID != "tool-a" {
		t.Errorf("top fallback item = %s, want the most popular tool-a", recs[0].ItemID)
	}
}

func TestRecommendationsRejectBadLimit(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/recommendations?limit=nope", "",
		map[string]string{SubjectTokenHeader: "u"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpsertItemFeedsCatalog(t *testing.T) {
	f := newFixture(t)

	body := `{"category": "coding", "embedding": [0, 1, 0, 0]}`
	rec, env := f.do(t, http.MethodPut, "/api/v1/items/tool-new", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("success = false: %+v", env.Error)
	}

	item, ok := f.index.Item("tool-new")
	if !ok {
		t.Fatal("upserted item missing from the serving index")
	}
	if item.Category != "coding" {
		t.Errorf("item category = %q, want coding", item.Category)
	}
}

func TestUpsertItemValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing embedding", `{"category": "coding"}`},
		{"wrong dimension", `{"category": "coding", "embedding": [1, 0]}`},
		{"malformed body", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodPut, "/api/v1/items/tool-bad", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
	if _, ok := f.index.Item("tool-bad"); ok {
		t.Error("rejected item reached the serving index")
	}
}

func TestRemoveItemDropsFromIndex(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodDelete, "/api/v1/items/tool-a", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if _, ok := f.index.Item("tool-a"); ok {
		t.Error("removed item still in the serving index")
	}
}

func TestEraseSubjectRemovesSignals(t *testing.T) {
	f := newFixture(t)

	if rec, _ := f.do(t, http.MethodPost, "/api/v1/feedback", feedbackBody("key-e"), nil); rec.Code != http.StatusAccepted {
		t.Fatalf("seed feedback failed: %d", rec.Code)
	}

	rec, env := f.do(t, http.MethodDelete, "/api/v1/subjects/user-42", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var report privacy.ErasureReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.SignalsErased != 1 {
		t.Errorf("SignalsErased = %d, want 1", report.SignalsErased)
	}
	if f.log.Len() != 0 {
		t.Errorf("log holds %d signals after erasure, want 0", f.log.Len())
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	if rec, _ := f.do(t, http.MethodGet, "/api/v1/health/live", "", nil); rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	f.ready = false
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/health/ready", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status = %d, want 503", rec.Code)
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response missing request ID header")
	}

	rec, _ = f.do(t, http.MethodGet, "/api/v1/health/live", "",
		map[string]string{RequestIDHeader: "fixed-id"})
	if got := rec.Header().Get(RequestIDHeader); got != "fixed-id" {
		t.Errorf("request ID = %q, want the incoming fixed-id", got)
	}
}

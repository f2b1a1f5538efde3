package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/internal/learning/learningtest"
	"github.com/flemzord/recall/internal/persist"
	"github.com/flemzord/recall/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticFacts is a fixed fact list.
type staticFacts []string

func (f staticFacts) Facts() []string { return f }
func (f staticFacts) Len() int        { return len(f) }

// fixedCheckpoint reports a constant cursor.
type fixedCheckpoint struct{ ts *time.Time }

func (c fixedCheckpoint) Checkpoint() *time.Time { return c.ts }

type testEnv struct {
	gateway *Gateway
	buffer  *discussion.Buffer
	audit   *learningtest.AuditLog
	metrics *telemetry.Metrics
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	metrics := telemetry.NewMetrics()
	buffer := discussion.NewBuffer(discussion.BufferConfig{
		Points:  persist.NewMemoryStore("discussions"),
		History: persist.NewMemoryStore("daily_history"),
		Logger:  discardLogger(),
		Metrics: metrics,
	})
	log := learningtest.NewAuditLog()
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	var recorder audit.Recorder = log
	g := New(cfg, Deps{
		Facts:       staticFacts{"Alice likes Go", "Bob owns a cat"},
		Discussions: buffer,
		Checkpoint:  fixedCheckpoint{ts: &ts},
		Audit:       recorder,
		Metrics:     metrics,
		Logger:      discardLogger(),
	})
	return &testEnv{gateway: g, buffer: buffer, audit: log, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.gateway.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

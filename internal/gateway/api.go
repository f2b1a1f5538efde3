package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/internal/security"
)

// Point sources reported to metrics.
const (
	sourceHTTP      = "http"
	sourceWebSocket = "websocket"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 64 << 10

var errInvalidPoint = errors.New("invalid discussion point")

// pointRequest is the body of POST /api/points and each /ws/ingest frame.
type pointRequest struct {
	Chat    string `json:"chat"`
	Sender  string `json:"sender"`
	Summary string `json:"summary"`
}

func (p *pointRequest) normalize() error {
	p.Chat = strings.TrimSpace(p.Chat)
	p.Sender = strings.TrimSpace(p.Sender)
	p.Summary = strings.TrimSpace(p.Summary)
	var missing []string
	if p.Chat == "" {
		missing = append(missing, "chat")
	}
	if p.Sender == "" {
		missing = append(missing, "sender")
	}
	if p.Summary == "" {
		missing = append(missing, "summary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errInvalidPoint, strings.Join(missing, ", "))
	}
	return nil
}

// ingest validates and rate-limits one point, then appends it to the buffer.
func (g *Gateway) ingest(source string, req pointRequest) (discussion.Point, error) {
	if err := req.normalize(); err != nil {
		return discussion.Point{}, err
	}
	if err := g.limiter.Allow(req.Sender); err != nil {
		g.logger.Warn("gateway: ingest rate limited", "sender", req.Sender, "source", source)
		return discussion.Point{}, err
	}
	p := g.discussions.AddPoint(req.Chat, req.Sender, req.Summary)
	g.metrics.PointIngested(source)
	return p, nil
}

// ingestStatus maps an ingest error to an HTTP status.
func ingestStatus(err error) int {
	switch {
	case errors.Is(err, errInvalidPoint):
		return http.StatusBadRequest
	case errors.Is(err, security.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type factsResponse struct {
	Count int      `json:"count"`
	Facts []string `json:"facts"`
}

func (g *Gateway) handleListFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		facts := g.facts.Facts()
		if facts == nil {
			facts = []string{}
		}
		writeJSON(w, http.StatusOK, factsResponse{Count: len(facts), Facts: facts})
	}
}

func (g *Gateway) handleListDigests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		entries := g.discussions.Recent(limit)
		if entries == nil {
			entries = []discussion.DigestEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (g *Gateway) handleListPoints() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		points := g.discussions.Points()
		if points == nil {
			points = []discussion.Point{}
		}
		writeJSON(w, http.StatusOK, points)
	}
}

func (g *Gateway) handleAddPoint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pointRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p, err := g.ingest(sourceHTTP, req)
		if err != nil {
			writeError(w, ingestStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// auditRequest is the body of POST /api/audit.
type auditRequest struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Sender    string     `json:"sender"`
	Chat      string     `json:"chat,omitempty"`
	Text      string     `json:"text"`
}

func (g *Gateway) handleRecordAudit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auditRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		entry := audit.Entry{Sender: req.Sender, Chat: req.Chat, Text: req.Text}
		if req.Timestamp != nil {
			entry.Timestamp = *req.Timestamp
		}
		if err := g.audit.Record(r.Context(), entry); err != nil {
			if errors.Is(err, audit.ErrEmptySender) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			g.logger.Error("gateway: audit record failed", "error", err)
			writeError(w, http.StatusInternalServerError, "audit record failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	}
}

// decodeBody decodes a bounded JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

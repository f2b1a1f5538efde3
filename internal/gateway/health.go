package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string     `json:"status"`
	Facts         int        `json:"facts"`
	PendingPoints int        `json:"pending_points"`
	Checkpoint    *time.Time `json:"checkpoint"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.facts != nil {
			resp.Facts = g.facts.Len()
		}
		if g.discussions != nil {
			resp.PendingPoints = g.discussions.Len()
		}
		if g.checkpoint != nil {
			resp.Checkpoint = g.checkpoint.Checkpoint()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ingestAck answers every frame received on /ws/ingest.
type ingestAck struct {
	OK      bool   `json:"ok"`
	Pending int    `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleIngest accepts a stream of point frames. A bad frame is answered
// with an error ack and the connection stays open.
func (g *Gateway) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("gateway: websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()
	conn.SetReadLimit(maxBodySize)

	ctx := r.Context()
	g.logger.Info("gateway: ingest stream opened", "remote_addr", r.RemoteAddr)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				g.logger.Info("gateway: ingest stream closed", "remote_addr", r.RemoteAddr)
				_ = conn.Close(websocket.StatusNormalClosure, "")
			} else {
				g.logger.Warn("gateway: ingest read failed", "remote_addr", r.RemoteAddr, "error", err)
			}
			return
		}

		var req pointRequest
		ack := ingestAck{OK: true}
		if err := json.Unmarshal(data, &req); err != nil {
			ack = ingestAck{Error: "invalid message format"}
		} else if _, err := g.ingest(sourceWebSocket, req); err != nil {
			ack = ingestAck{Error: err.Error()}
		} else {
			ack.Pending = g.discussions.Len()
		}

		if err := wsjson.Write(ctx, conn, ack); err != nil {
			g.logger.Warn("gateway: ingest ack failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}
	}
}

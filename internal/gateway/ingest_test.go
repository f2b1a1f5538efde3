package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialIngest(t *testing.T, ctx context.Context, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	return websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/ingest", opts)
}

func TestIngest_StreamsPoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{Token: "secret"})
	srv := httptest.NewServer(env.gateway.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := dialIngest(t, ctx, srv, "secret")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for i, summary := range []string{"first", "second"} {
		if err := wsjson.Write(ctx, conn, pointRequest{Chat: "ops", Sender: "alice", Summary: summary}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var ack ingestAck
		if err := wsjson.Read(ctx, conn, &ack); err != nil {
			t.Fatalf("read ack: %v", err)
		}
		if !ack.OK || ack.Pending != i+1 {
			t.Errorf("ack %d = %+v", i, ack)
		}
	}

	// A malformed frame is answered but does not end the stream.
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var bad ingestAck
	if err := wsjson.Read(ctx, conn, &bad); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if bad.OK || bad.Error == "" {
		t.Errorf("bad ack = %+v", bad)
	}

	if err := wsjson.Write(ctx, conn, pointRequest{Chat: "ops", Sender: "alice"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var invalid ingestAck
	if err := wsjson.Read(ctx, conn, &invalid); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if invalid.OK || !strings.Contains(invalid.Error, "summary") {
		t.Errorf("invalid ack = %+v", invalid)
	}

	if env.buffer.Len() != 2 {
		t.Errorf("buffer len = %d, want 2", env.buffer.Len())
	}
}

func TestIngest_RequiresToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Config{Token: "secret"})
	srv := httptest.NewServer(env.gateway.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := dialIngest(t, ctx, srv, "")
	if err == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

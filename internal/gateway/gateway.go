// Package gateway exposes the fact store, the discussion buffer and the
// audit log over HTTP, and accepts streamed discussion points over a
// WebSocket. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/internal/security"
	"github.com/flemzord/recall/internal/telemetry"
)

// Facts is the read side of the fact store.
type Facts interface {
	Facts() []string
	Len() int
}

// Discussions is the part of the discussion buffer the gateway uses.
type Discussions interface {
	AddPoint(chat, sender, summary string) discussion.Point
	Points() []discussion.Point
	Len() int
	Recent(n int) []discussion.DigestEntry
}

// Checkpointer reports the learning pipeline's cursor.
type Checkpointer interface {
	Checkpoint() *time.Time
}

// Deps are the components served by the gateway. Checkpoint, Audit and
// Metrics are optional.
type Deps struct {
	Facts       Facts
	Discussions Discussions
	Checkpoint  Checkpointer
	Audit       audit.Recorder
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// Gateway is the HTTP server.
type Gateway struct {
	config      Config
	logger      *slog.Logger
	facts       Facts
	discussions Discussions
	checkpoint  Checkpointer
	audit       audit.Recorder
	metrics     *telemetry.Metrics
	limiter     *security.RateLimiter
	handler     http.Handler

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// New builds a Gateway and its router. Nothing listens until Start.
func New(cfg Config, deps Deps) *Gateway {
	cfg.defaults()
	g := &Gateway{
		config:      cfg,
		logger:      deps.Logger,
		facts:       deps.Facts,
		discussions: deps.Discussions,
		checkpoint:  deps.Checkpoint,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		limiter:     security.NewRateLimiter(cfg.IngestPerMinute, time.Minute),
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.handler = g.buildRouter()
	return g
}

// Handler returns the router, for embedding or tests.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Addr returns the bound address once started.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Start implements core.Starter. It binds the listener synchronously so
// that address errors surface at startup, then serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server != nil {
		return errors.New("gateway: already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Listen)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	g.server = &http.Server{
		Handler:      g.handler,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	g.addr = ln.Addr()

	srv := g.server
	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	srv := g.server
	g.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Compile-time interface assertions.
var (
	_ core.Starter = (*Gateway)(nil)
	_ core.Stopper = (*Gateway)(nil)
	_ Discussions  = (*discussion.Buffer)(nil)
)

// Package mcpserver exposes the fact store and the discussion buffer as
// Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/internal/telemetry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Name is the server name announced during the MCP handshake.
const Name = "recall"

// defaultHistoryLimit is used when digest_history is called without a limit.
const defaultHistoryLimit = 5

// FactStore is the part of memory.FactStore the tools use.
type FactStore interface {
	AddFact(fact string) bool
	RenderForPrompt() string
	Len() int
}

// Discussions is the part of discussion.Buffer the tools use.
type Discussions interface {
	AddPoint(chat, sender, summary string) discussion.Point
	GroupedText() (string, bool)
	Recent(n int) []discussion.DigestEntry
}

// Deps are the components behind the tools. Metrics and Logger are optional.
type Deps struct {
	Facts       FactStore
	Discussions Discussions
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// Server wraps an MCP server with the recall tools registered.
type Server struct {
	facts       FactStore
	discussions Discussions
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	mcp         *server.MCPServer
}

// New registers every tool on a fresh MCP server.
func New(deps Deps, version string) *Server {
	s := &Server{
		facts:       deps.Facts,
		discussions: deps.Discussions,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcp = server.NewMCPServer(Name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("list_facts",
		mcp.WithDescription("List every long-term fact learned from past conversations."),
	), s.listFacts)

	s.mcp.AddTool(mcp.NewTool("remember_fact",
		mcp.WithDescription("Store a new long-term fact. Exact duplicates are ignored."),
		mcp.WithString("fact", mcp.Required(), mcp.Description("A short, self-contained statement")),
	), s.rememberFact)

	s.mcp.AddTool(mcp.NewTool("digest_history",
		mcp.WithDescription("Show the most recent daily discussion digests, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of digests to return (default 5)")),
	), s.digestHistory)

	s.mcp.AddTool(mcp.NewTool("pending_discussions",
		mcp.WithDescription("Show today's discussion points that have not been digested yet, grouped by chat."),
	), s.pendingDiscussions)

	s.mcp.AddTool(mcp.NewTool("add_discussion_point",
		mcp.WithDescription("Buffer a discussion point for tonight's digest."),
		mcp.WithString("chat", mcp.Required(), mcp.Description("Chat or channel name")),
		mcp.WithString("sender", mcp.Required(), mcp.Description("Who said it")),
		mcp.WithString("summary", mcp.Required(), mcp.Description("One-line summary of the point")),
	), s.addDiscussionPoint)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves JSON-RPC on in and out until ctx is cancelled or in
// reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp: serving on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) listFacts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.facts.RenderForPrompt()), nil
}

func (s *Server) rememberFact(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fact, err := req.RequireString("fact")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return mcp.NewToolResultError("fact must not be empty"), nil
	}

	if !s.facts.AddFact(fact) {
		return mcp.NewToolResultText("already known"), nil
	}
	s.metrics.SetFacts(s.facts.Len())
	s.logger.Info("mcp: fact remembered")
	return mcp.NewToolResultText("added"), nil
}

func (s *Server) digestHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	entries := s.discussions.Recent(limit)
	if len(entries) == 0 {
		return mcp.NewToolResultText("No digests yet."), nil
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return mcp.NewToolResultText(strings.Join(parts, "\n\n")), nil
}

func (s *Server) pendingDiscussions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := s.discussions.GroupedText()
	if !ok {
		return mcp.NewToolResultText(discussion.NoPendingText), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) addDiscussionPoint(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var fields [3]string
	for i, name := range []string{"chat", "sender", "summary"} {
		v, err := req.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if v = strings.TrimSpace(v); v == "" {
			return mcp.NewToolResultError(name + " must not be empty"), nil
		}
		fields[i] = v
	}

	s.discussions.AddPoint(fields[0], fields[1], fields[2])
	s.metrics.PointIngested("mcp")
	return mcp.NewToolResultText("buffered"), nil
}

// Compile-time interface assertion.
var _ Discussions = (*discussion.Buffer)(nil)


package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/persist"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/provider/anthropic"
	"github.com/flemzord/recall/internal/provider/providertest"
)

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Oracle.BaseURL = "http://127.0.0.1:1/v1"
	cfg.Oracle.Model = "test-model"
	cfg.Oracle.APIKey = "sk-test-secret-key-1234567890"
	cfg.Retry.MaxRetries = 0
	cfg.Audit.Driver = driver
	if driver == config.AuditDriverJSONL {
		cfg.Audit.Path = "audit.jsonl"
	}
	return cfg
}

// oracle answers extraction prompts with facts and anything else with a
// digest summary.
func oracle(facts ...string) *providertest.MockProvider {
	return &providertest.MockProvider{
		CompleteFunc: func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
			if req.ResponseFormat == provider.ResponseFormatJSON {
				raw, _ := json.Marshal(map[string][]string{"facts": facts})
				return provider.CompletionResponse{Content: string(raw)}, nil
			}
			return provider.CompletionResponse{Content: "The team agreed to ship on Friday."}, nil
		},
	}
}

func build(t *testing.T, cfg *config.Config, p provider.Provider) *Components {
	t.Helper()
	c, err := Build(context.Background(), cfg, Options{LogWriter: io.Discard, Provider: p})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestBuild_LearningCycleEndToEnd(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{config.AuditDriverSQLite, config.AuditDriverJSONL} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(t, driver)
			c := build(t, cfg, oracle("Alice lives in Lyon", "Bob has a cat"))
			ctx := context.Background()

			base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
			for i, text := range []string{"I moved to Lyon", "my cat is called Tom"} {
				if err := c.Audit.Record(ctx, audit.Entry{
					Timestamp: base.Add(time.Duration(i) * time.Minute),
					Sender:    "alice",
					Text:      text,
				}); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}

			report, err := c.Pipeline.DigestContext(ctx)
			if err != nil {
				t.Fatalf("DigestContext: %v", err)
			}
			if report.Selected != 2 || report.Added != 2 {
				t.Errorf("report = %+v", report)
			}
			if got := c.Facts.Len(); got != 2 {
				t.Errorf("facts = %d, want 2", got)
			}

			cp := c.Pipeline.Checkpoint()
			if cp == nil || !cp.Equal(base.Add(time.Minute)) {
				t.Errorf("checkpoint = %v, want %v", cp, base.Add(time.Minute))
			}
			if _, err := os.Stat(filepath.Join(cfg.DataDir, "learning_state.json")); err != nil {
				t.Errorf("checkpoint file: %v", err)
			}
			if _, err := os.Stat(filepath.Join(cfg.DataDir, "facts.json")); err != nil {
				t.Errorf("facts file: %v", err)
			}
		})
	}
}

func TestBuild_DigestFlushEndToEnd(t *testing.T) {
	t.Parallel()

	c := build(t, testConfig(t, config.AuditDriverSQLite), oracle())
	c.Buffer.AddPoint("ops", "alice", "ship friday")

	entry, archived, err := c.Digester.Flush(context.Background())
	if err != nil || !archived {
		t.Fatalf("Flush = %v, %v", archived, err)
	}
	if entry.PointCount != 1 || entry.SummaryText != "The team agreed to ship on Friday." {
		t.Errorf("entry = %+v", entry)
	}
	if c.Buffer.Len() != 0 || len(c.Buffer.History()) != 1 {
		t.Errorf("buffer = %d, history = %d", c.Buffer.Len(), len(c.Buffer.History()))
	}
}

func TestBuild_RedactsOracleKeyInLogs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	var buf bytes.Buffer
	c, err := Build(context.Background(), cfg, Options{LogWriter: &buf, Provider: oracle()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() { _ = c.Close(context.Background()) }()

	c.Logger.Info("calling oracle", "key", cfg.Oracle.APIKey)
	if strings.Contains(buf.String(), cfg.Oracle.APIKey) {
		t.Errorf("log leaked the API key: %s", buf.String())
	}
}

func TestBuild_DefaultProvider(t *testing.T) {
	t.Parallel()

	c := build(t, testConfig(t, config.AuditDriverSQLite), nil)
	if got := c.Provider.ModelName(); got != "test-model" {
		t.Errorf("model = %q", got)
	}
}

func TestBuild_AnthropicProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	cfg.Oracle.Kind = config.OracleKindAnthropic
	cfg.Oracle.Model = "claude-test"
	c := build(t, cfg, nil)
	if _, ok := c.Provider.(*anthropic.Provider); !ok {
		t.Errorf("provider = %T, want *anthropic.Provider", c.Provider)
	}
}

func TestBuild_MetricsDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	cfg.Telemetry.Metrics = false
	c := build(t, cfg, oracle())
	if c.Metrics != nil {
		t.Error("metrics should be nil when disabled")
	}
	// Components still work with a nil registry.
	c.Buffer.AddPoint("ops", "bob", "hello")
}

func TestBuild_StateFileErrors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	cfg.Memory.FactsFile = ""
	cfg.Learning.StateFile = ""
	_, err := Build(context.Background(), cfg, Options{LogWriter: io.Discard, Provider: oracle()})
	if !errors.Is(err, persist.ErrEmptyPath) {
		t.Fatalf("err = %v, want ErrEmptyPath", err)
	}
	for _, key := range []string{"memory.facts_file", "learning.state_file"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestComponents_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := build(t, testConfig(t, config.AuditDriverJSONL), oracle())
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestService_StartStop(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	cfg.Learning.Interval = time.Hour
	cfg.Gateway.Enabled = true
	cfg.Gateway.Listen = "127.0.0.1:0"
	c := build(t, cfg, oracle())

	application, err := c.Service()
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	application.Stop()
}

func TestService_InvalidDigestSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, config.AuditDriverSQLite)
	cfg.Discussion.DigestSchedule = "not a schedule"
	c := build(t, cfg, oracle())

	if _, err := c.Service(); err == nil {
		t.Fatal("expected error for invalid digest schedule")
	}
}

func TestComponents_GatewayServesState(t *testing.T) {
	t.Parallel()

	c := build(t, testConfig(t, config.AuditDriverSQLite), oracle())
	c.Buffer.AddPoint("ops", "alice", "ship friday")

	srv := httptest.NewServer(c.Gateway().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"pending_points":1`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
}

func TestComponents_MCPListsTools(t *testing.T) {
	t.Parallel()

	c := build(t, testConfig(t, config.AuditDriverSQLite), oracle())
	if c.MCP("test").MCPServer() == nil {
		t.Fatal("MCP server is nil")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	body := "version: \"1\"\ndata_dir: " + dir + "\noracle:\n  base_url: http://localhost:11434/v1\n  model: llama3\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, resolved, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if resolved != path || cfg.Oracle.Model != "llama3" {
		t.Errorf("resolved = %q, cfg = %+v", resolved, cfg.Oracle)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("version: \"2\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"invalid yaml", bad},
		{"validation failure", invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := Run(context.Background(), RunParams{ConfigPath: tt.path, LogWriter: io.Discard}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpen_ReturnsUnstartedApp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	body := "version: \"1\"\ndata_dir: " + dir + "\noracle:\n  base_url: http://127.0.0.1:1/v1\n  model: m\nlearning:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	application, err := Open(context.Background(), RunParams{ConfigPath: path, LogWriter: io.Discard})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	application.Stop()

	if _, err := Open(context.Background(), RunParams{ConfigPath: filepath.Join(dir, "missing.yaml"), LogWriter: io.Discard}); err == nil {
		t.Error("Open should fail for a missing config")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "recall.yaml")
	body := "version: \"1\"\ndata_dir: " + dir + "\noracle:\n  base_url: http://127.0.0.1:1/v1\n  model: m\nlearning:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, RunParams{ConfigPath: path, LogWriter: io.Discard}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

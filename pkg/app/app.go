// Package app assembles recall's components from a configuration. The CLI
// commands and the long-running service share the same graph.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/internal/learning"
	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/internal/persist"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/provider/anthropic"
	"github.com/flemzord/recall/internal/provider/openaicompat"
	"github.com/flemzord/recall/internal/retry"
	"github.com/flemzord/recall/internal/security"
	"github.com/flemzord/recall/internal/telemetry"
)

// Options tune Build.
type Options struct {
	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer

	// Provider replaces the configured OpenAI-compatible oracle.
	Provider provider.Provider
}

// Components is the assembled object graph.
type Components struct {
	Config   *config.Config
	Logger   *slog.Logger
	Redactor *security.Redactor
	Metrics  *telemetry.Metrics
	Tracing  *telemetry.Tracing

	Facts    *memory.FactStore
	Buffer   *discussion.Buffer
	Audit    audit.Log
	Provider provider.Provider

	Pipeline *learning.Pipeline
	Digester *discussion.Digester

	closeOnce sync.Once
	closeErr  error
}

// Build wires every component for cfg. The caller must Close the result.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	c := &Components{Config: cfg}

	c.Redactor = security.NewRedactor(cfg.Oracle.ResolveAPIKey(), cfg.Gateway.Token)
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	c.Logger = NewLogger(cfg.Log, cfg.LogLevel(), w, c.Redactor)

	if cfg.Telemetry.Metrics {
		c.Metrics = telemetry.NewMetrics()
	}
	tracing, err := telemetry.NewTracing(ctx, telemetry.TracingConfig{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.OTLPInsecure,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	c.Tracing = tracing

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	files, err := openStateFiles(cfg)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Facts = memory.NewFactStore(files.facts, c.Logger)
	c.Buffer = discussion.NewBuffer(discussion.BufferConfig{
		Points:  files.points,
		History: files.history,
		Logger:  c.Logger,
		Metrics: c.Metrics,
	})

	c.Audit, err = openAudit(ctx, cfg, c.Redactor, c.Logger)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	c.Provider = opts.Provider
	if c.Provider == nil {
		c.Provider, err = openOracle(cfg.Oracle, c.Logger)
		if err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
	}

	policy := retry.Policy{
		MaxRetries:  cfg.Retry.MaxRetries,
		Base:        cfg.Retry.Base,
		MaxInterval: cfg.Retry.MaxInterval,
	}

	c.Pipeline = learning.NewPipeline(learning.Config{
		Source:     c.Audit,
		Extractor:  memory.NewLLMExtractor(c.Provider, policy, c.Logger, c.Metrics),
		Facts:      c.Facts,
		Checkpoint: files.checkpoint,
		FetchLimit: cfg.Learning.FetchLimit,
		BatchSize:  cfg.Learning.BatchSize,
		Logger:     c.Logger,
		Metrics:    c.Metrics,
		Tracing:    c.Tracing,
	})

	summarizer := discussion.NewLLMSummarizer(c.Provider, policy, c.Logger, c.Metrics)
	c.Digester = discussion.NewDigester(c.Buffer, summarizer, c.Logger, c.Metrics, c.Tracing)

	c.Logger.Debug("app: components built",
		"data_dir", cfg.DataDir,
		"audit_driver", cfg.Audit.Driver,
		"model", c.Provider.ModelName(),
	)
	return c, nil
}

// stateFiles are the JSON stores handed to the stateful components.
type stateFiles struct {
	facts      *persist.JSONFile
	points     *persist.JSONFile
	history    *persist.JSONFile
	checkpoint *persist.JSONFile
}

// openStateFiles resolves every state file against the data dir. All
// failures are reported together.
func openStateFiles(cfg *config.Config) (stateFiles, error) {
	var (
		files stateFiles
		errs  []error
	)
	open := func(dst **persist.JSONFile, key, name string) {
		f, err := persist.NewJSONFile(cfg.Path(name))
		if err != nil {
			errs = append(errs, fmt.Errorf("app: %s: %w", key, err))
			return
		}
		*dst = f
	}
	open(&files.facts, "memory.facts_file", cfg.Memory.FactsFile)
	open(&files.points, "discussion.buffer_file", cfg.Discussion.BufferFile)
	open(&files.history, "discussion.history_file", cfg.Discussion.HistoryFile)
	open(&files.checkpoint, "learning.state_file", cfg.Learning.StateFile)
	return files, errors.Join(errs...)
}

// openAudit opens the configured audit driver.
func openAudit(ctx context.Context, cfg *config.Config, redactor *security.Redactor, logger *slog.Logger) (audit.Log, error) {
	path := cfg.Path(cfg.Audit.Path)
	switch cfg.Audit.Driver {
	case config.AuditDriverJSONL:
		f, err := audit.OpenJSONL(path, redactor, logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.AuditDriverSQLite, "":
		db, err := audit.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("app: unknown audit driver %q", cfg.Audit.Driver)
	}
}

// openOracle builds the provider for the configured oracle kind.
func openOracle(o config.OracleConfig, logger *slog.Logger) (provider.Provider, error) {
	switch o.Kind {
	case config.OracleKindAnthropic:
		p, err := anthropic.New(anthropic.Config{
			BaseURL:   o.BaseURL,
			APIKey:    o.ResolveAPIKey(),
			Model:     o.Model,
			MaxTokens: o.MaxTokens,
			Headers:   o.Headers,
			Timeout:   o.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.OracleKindOpenAI, "":
		p, err := openaicompat.New(openaicompat.Config{
			BaseURL:   o.BaseURL,
			APIKey:    o.ResolveAPIKey(),
			Model:     o.Model,
			MaxTokens: o.MaxTokens,
			Headers:   o.Headers,
			Timeout:   o.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("app: unknown oracle kind %q", o.Kind)
	}
}

// Stop implements core.Stopper by closing shared resources.
func (c *Components) Stop(ctx context.Context) error {
	return c.Close(ctx)
}

// Close releases the audit log and flushes pending spans. It is safe to
// call more than once.
func (c *Components) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		var errs []error
		if s, ok := c.Audit.(interface{ Stop(context.Context) error }); ok {
			errs = append(errs, s.Stop(ctx))
		}
		if c.Tracing != nil {
			errs = append(errs, c.Tracing.Stop(ctx))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// NewLogger builds the root logger: a text or JSON handler on w, wrapped so
// that secrets known to redactor never reach the output.
func NewLogger(cfg config.LogConfig, level slog.Level, w io.Writer, redactor *security.Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(h, redactor))
}

// Package learning turns new audit-log entries into long-term facts. A
// Pipeline runs one bounded, checkpointed cycle; a Loop runs cycles forever.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/persist"
	"github.com/flemzord/recall/internal/telemetry"
)

// Defaults for a Pipeline.
const (
	DefaultFetchLimit = 1000
	DefaultBatchSize  = 200
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one is still running.
var ErrCycleInProgress = errors.New("learning: cycle already in progress")

// AuditSource supplies recent audit-log entries, newest first.
type AuditSource interface {
	GetAuditLog(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Extractor is the fact-extraction oracle.
type Extractor interface {
	AnalyzeContextBatch(ctx context.Context, historyText string) ([]string, error)
}

// FactSink receives extracted facts. AddFact reports whether the fact was
// new.
type FactSink interface {
	AddFact(fact string) bool
	Len() int
}

// Config wires a Pipeline.
type Config struct {
	Source     AuditSource
	Extractor  Extractor
	Facts      FactSink
	Checkpoint persist.Store

	// FetchLimit bounds how many entries are read per cycle.
	FetchLimit int
	// BatchSize bounds how many entries are sent to the extractor.
	BatchSize int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Tracing *telemetry.Tracing

	// Now overrides time.Now for cycle timing.
	Now func() time.Time
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Fetched    int        `json:"fetched"`
	Selected   int        `json:"selected"`
	Candidates int        `json:"candidates"`
	Added      int        `json:"added"`
	Advanced   bool       `json:"advanced"`
	Checkpoint *time.Time `json:"checkpoint,omitempty"`
}

// Pipeline is the checkpointed learning cycle. Only one cycle runs at a
// time.
type Pipeline struct {
	source     AuditSource
	extractor  Extractor
	facts      FactSink
	store      persist.Store
	fetchLimit int
	batchSize  int
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	now        func() time.Time

	running sync.Mutex

	mu         sync.Mutex
	checkpoint *time.Time
}

// NewPipeline loads the checkpoint and returns a ready Pipeline.
func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		source:     cfg.Source,
		extractor:  cfg.Extractor,
		facts:      cfg.Facts,
		store:      cfg.Checkpoint,
		fetchLimit: cfg.FetchLimit,
		batchSize:  cfg.BatchSize,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracing.Tracer(),
		now:        cfg.Now,
	}
	if p.fetchLimit <= 0 {
		p.fetchLimit = DefaultFetchLimit
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}

	p.checkpoint = loadCheckpoint(p.store, p.logger)
	if p.checkpoint != nil {
		p.metrics.SetCheckpoint(*p.checkpoint)
	}
	p.metrics.SetFacts(p.facts.Len())
	return p
}

// Checkpoint returns the current cursor, or nil before the first cycle.
func (p *Pipeline) Checkpoint() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkpoint == nil {
		return nil
	}
	ts := *p.checkpoint
	return &ts
}

// DigestContext runs one cycle: fetch, filter, extract, store facts and
// advance the checkpoint. Extraction failures are absorbed; only audit
// source failures are returned.
func (p *Pipeline) DigestContext(ctx context.Context) (CycleReport, error) {
	if !p.running.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer p.running.Unlock()

	start := p.now()
	ctx, span := p.tracer.Start(ctx, "learning.cycle")
	defer span.End()

	report, err := p.cycle(ctx)

	outcome := telemetry.CycleProcessed
	switch {
	case err != nil:
		outcome = telemetry.CycleFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case report.Selected == 0:
		outcome = telemetry.CycleIdle
	}
	span.SetAttributes(
		attribute.Int("learning.fetched", report.Fetched),
		attribute.Int("learning.selected", report.Selected),
		attribute.Int("learning.facts_added", report.Added),
		attribute.Bool("learning.advanced", report.Advanced),
	)
	p.metrics.ObserveCycle(telemetry.CycleStats{
		Outcome:    outcome,
		Duration:   p.now().Sub(start),
		Fetched:    report.Fetched,
		Selected:   report.Selected,
		Candidates: report.Candidates,
		Added:      report.Added,
		Checkpoint: report.Checkpoint,
	})
	p.metrics.SetFacts(p.facts.Len())
	return report, err
}

func (p *Pipeline) cycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{Checkpoint: p.Checkpoint()}

	entries, err := p.source.GetAuditLog(ctx, p.fetchLimit)
	if err != nil {
		return report, fmt.Errorf("learning: fetch audit log: %w", err)
	}
	report.Fetched = len(entries)
	if len(entries) == 0 {
		p.logger.Debug("learning: audit log is empty")
		return report, nil
	}

	batch := selectBatch(entries, report.Checkpoint, p.batchSize)
	report.Selected = len(batch)
	if len(batch) == 0 {
		p.logger.Debug("learning: no new entries since checkpoint", "checkpoint", report.Checkpoint)
		return report, nil
	}

	candidates, err := p.extractor.AnalyzeContextBatch(ctx, renderBatch(batch))
	if err != nil {
		p.logger.Warn("learning: extraction failed, continuing without facts", "error", err)
		candidates = nil
	}
	report.Candidates = len(candidates)

	for _, fact := range candidates {
		if p.facts.AddFact(fact) {
			report.Added++
		}
	}

	report.Advanced = p.advance(batch[0].Timestamp)
	report.Checkpoint = p.Checkpoint()

	p.logger.Info("learning: cycle complete",
		"fetched", report.Fetched,
		"selected", report.Selected,
		"candidates", report.Candidates,
		"added", report.Added,
		"checkpoint", report.Checkpoint,
	)
	return report, nil
}

// advance moves the checkpoint forward to ts and persists it. It never
// moves backwards. A failed save is logged; the in-memory cursor still
// advances.
func (p *Pipeline) advance(ts time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.checkpoint != nil && !ts.After(*p.checkpoint) {
		return false
	}
	p.checkpoint = &ts
	saveCheckpoint(p.store, p.checkpoint, p.logger)
	return true
}

// selectBatch applies the cycle filter to entries, which are newest first.
// Without a checkpoint the newest batchSize entries are taken. With one,
// entries strictly newer than it are kept and then truncated to batchSize,
// so anything beyond the cap is never processed.
func selectBatch(entries []audit.Entry, checkpoint *time.Time, batchSize int) []audit.Entry {
	var batch []audit.Entry
	if checkpoint == nil {
		batch = entries
	} else {
		for _, e := range entries {
			if e.Timestamp.After(*checkpoint) {
				batch = append(batch, e)
			}
		}
	}
	if len(batch) > batchSize {
		batch = batch[:batchSize]
	}
	return batch
}

// renderBatch formats entries one per line, keeping their order.
func renderBatch(entries []audit.Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s: %s", e.Timestamp.UTC().Format(time.RFC3339), e.Sender, e.Text)
	}
	return strings.Join(lines, "\n")
}

// Package learningtest provides test doubles for the learning package.
package learningtest

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/flemzord/recall/internal/audit"
	"github.com/flemzord/recall/internal/learning"
)

// AuditLog is an in-memory audit.Log. Entries are returned newest first
// regardless of insertion order.
type AuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
	calls   int

	// Err, when set, is returned by GetAuditLog.
	Err error
}

// Compile-time interface checks.
var (
	_ audit.Log            = (*AuditLog)(nil)
	_ learning.AuditSource = (*AuditLog)(nil)
)

// NewAuditLog returns a log holding entries.
func NewAuditLog(entries ...audit.Entry) *AuditLog {
	return &AuditLog{entries: slices.Clone(entries)}
}

// Record appends e. Like the real logs it rejects an empty sender.
func (l *AuditLog) Record(_ context.Context, e audit.Entry) error {
	if e.Sender == "" {
		return audit.ErrEmptySender
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// GetAuditLog implements learning.AuditSource.
func (l *AuditLog) GetAuditLog(_ context.Context, limit int) ([]audit.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.Err != nil {
		return nil, l.Err
	}
	out := slices.Clone(l.entries)
	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Calls returns how many times GetAuditLog ran.
func (l *AuditLog) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Extractor is a scripted learning.Extractor that records every batch.
type Extractor struct {
	mu      sync.Mutex
	batches []string

	// Facts is returned for every batch.
	Facts []string
	// Err, when set, is returned instead of Facts.
	Err error
}

// Compile-time interface check.
var _ learning.Extractor = (*Extractor)(nil)

// AnalyzeContextBatch implements learning.Extractor.
func (e *Extractor) AnalyzeContextBatch(_ context.Context, historyText string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, historyText)
	if e.Err != nil {
		return nil, e.Err
	}
	return slices.Clone(e.Facts), nil
}

// Batches returns the rendered batches received so far.
func (e *Extractor) Batches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.batches)
}

// CyclerFunc adapts a function to learning.Cycler.
type CyclerFunc func(ctx context.Context) (learning.CycleReport, error)

// DigestContext calls f.
func (f CyclerFunc) DigestContext(ctx context.Context) (learning.CycleReport, error) {
	return f(ctx)
}

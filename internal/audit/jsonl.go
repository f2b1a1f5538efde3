package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flemzord/recall/internal/security"
)

// JSONLWriter appends entries to a JSON-lines file, redacting text before
// it reaches disk.
type JSONLWriter struct {
	mu       sync.Mutex
	w        io.Writer
	redactor *security.Redactor
	now      func() time.Time
	failures atomic.Int64
}

// JSONLWriterConfig configures a JSONLWriter.
type JSONLWriterConfig struct {
	Writer   io.Writer
	Redactor *security.Redactor

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Compile-time interface check.
var _ Recorder = (*JSONLWriter)(nil)

// NewJSONLWriter creates a writer.
func NewJSONLWriter(cfg JSONLWriterConfig) *JSONLWriter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JSONLWriter{w: cfg.Writer, redactor: cfg.Redactor, now: now}
}

// Record appends e as one JSON line.
func (w *JSONLWriter) Record(_ context.Context, e Entry) error {
	if e.Sender == "" {
		return ErrEmptySender
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = w.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.Text = w.redactor.Redact(e.Text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.w).Encode(e); err != nil {
		w.failures.Add(1)
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return nil
}

// WriteErrors returns how many writes failed.
func (w *JSONLWriter) WriteErrors() int64 {
	return w.failures.Load()
}

// JSONLFile is a Log backed by an append-only JSON-lines file.
type JSONLFile struct {
	*JSONLWriter
	*JSONLSource
	f *os.File
}

// OpenJSONL opens path for appending and reading.
func OpenJSONL(path string, redactor *security.Redactor, logger *slog.Logger) (*JSONLFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &JSONLFile{
		JSONLWriter: NewJSONLWriter(JSONLWriterConfig{Writer: f, Redactor: redactor}),
		JSONLSource: NewJSONLSource(path, logger),
		f:           f,
	}, nil
}

// Compile-time interface check.
var _ Log = (*JSONLFile)(nil)

// Stop closes the file.
func (j *JSONLFile) Stop(context.Context) error {
	return j.f.Close()
}

// JSONLSource reads entries from a JSON-lines file. Malformed lines are
// skipped with a warning.
type JSONLSource struct {
	path   string
	logger *slog.Logger
}

// Compile-time interface check.
var _ Source = (*JSONLSource)(nil)

// NewJSONLSource creates a source for path.
func NewJSONLSource(path string, logger *slog.Logger) *JSONLSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONLSource{path: path, logger: logger}
}

// GetAuditLog returns up to limit entries, newest first. A missing file is
// an empty log.
func (s *JSONLSource) GetAuditLog(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.logger.Warn("audit: skipping malformed line", "path", s.path, "line", line, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", s.path, err)
	}

	// File order is append order; sort so out-of-order timestamps still
	// come back newest first, later lines winning ties.
	slices.Reverse(entries)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

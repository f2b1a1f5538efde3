// Package discussion buffers the day's discussion points and archives the
// daily digests generated from them.
package discussion

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/recall/internal/persist"
	"github.com/flemzord/recall/internal/telemetry"
)

const groupedHeader = "Here are the un-processed discussion points from today:\n\n"

// Point is one buffered discussion point.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Chat      string    `json:"chat"`
	Sender    string    `json:"sender"`
	Summary   string    `json:"summary"`
}

// DigestEntry is one archived digest.
type DigestEntry struct {
	Date        string    `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
	SummaryText string    `json:"summary_text"`
	PointCount  int       `json:"point_count"`
}

// String renders the entry as a dated heading followed by its summary.
func (e DigestEntry) String() string {
	return fmt.Sprintf("## %s (%d points)\n%s", e.Date, e.PointCount, e.SummaryText)
}

// NoPendingText is reported when the buffer holds no points.
const NoPendingText = "No pending discussion points."

// BufferConfig configures a Buffer.
type BufferConfig struct {
	// Points persists the active buffer.
	Points persist.Store
	// History persists the digest archive.
	History persist.Store

	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Buffer holds the active discussion points and the digest history. Every
// mutation rewrites its file before returning; failed writes are logged
// and the in-memory state is kept.
type Buffer struct {
	mu      sync.Mutex
	points  []Point
	history []DigestEntry

	pointsStore  persist.Store
	historyStore persist.Store
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	now          func() time.Time
}

// NewBuffer loads both files. A missing history file is created empty.
func NewBuffer(cfg BufferConfig) *Buffer {
	b := &Buffer{
		pointsStore:  cfg.Points,
		historyStore: cfg.History,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}

	if _, err := b.pointsStore.Load(&b.points); err != nil {
		b.logger.Error("discussion: failed to load buffer", "path", b.pointsStore.Path(), "error", err)
		b.points = nil
	}

	found, err := b.historyStore.Load(&b.history)
	switch {
	case err != nil:
		b.logger.Error("discussion: failed to load history", "path", b.historyStore.Path(), "error", err)
		b.history = nil
	case !found:
		b.history = []DigestEntry{}
		b.saveHistoryLocked()
	}

	b.metrics.SetPendingPoints(len(b.points))
	return b
}

// AddPoint appends a point stamped with the current time and persists the
// whole buffer.
func (b *Buffer) AddPoint(chat, sender, summary string) Point {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := Point{Timestamp: b.now(), Chat: chat, Sender: sender, Summary: summary}
	b.points = append(b.points, p)
	b.savePointsLocked()
	b.metrics.SetPendingPoints(len(b.points))
	b.logger.Info("discussion: point buffered", "chat", chat, "sender", sender)
	return p
}

// GroupedText renders the buffer grouped by chat in first-seen order. It
// returns false when the buffer is empty.
func (b *Buffer) GroupedText() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.points) == 0 {
		return "", false
	}

	var order []string
	grouped := make(map[string][]string)
	for _, p := range b.points {
		if _, ok := grouped[p.Chat]; !ok {
			order = append(order, p.Chat)
		}
		grouped[p.Chat] = append(grouped[p.Chat], "- ["+p.Sender+"]: "+p.Summary)
	}

	var sb strings.Builder
	sb.WriteString(groupedHeader)
	for _, chat := range order {
		sb.WriteString("### ")
		sb.WriteString(chat)
		sb.WriteString("\n")
		sb.WriteString(strings.Join(grouped[chat], "\n"))
		sb.WriteString("\n\n")
	}
	return sb.String(), true
}

// Archive prepends a digest to the history. PointCount is the buffer length
// at call time, which includes points added after the summary was made.
func (b *Buffer) Archive(summaryText string) DigestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry := DigestEntry{
		Date:        now.Format(time.DateOnly),
		Timestamp:   now,
		SummaryText: summaryText,
		PointCount:  len(b.points),
	}
	b.history = append([]DigestEntry{entry}, b.history...)
	b.saveHistoryLocked()
	b.logger.Info("discussion: digest archived", "date", entry.Date, "points", entry.PointCount)
	return entry
}

// Clear empties the buffer and persists the empty list.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = []Point{}
	b.savePointsLocked()
	b.metrics.SetPendingPoints(0)
}

// Points returns a copy of the buffered points in insertion order.
func (b *Buffer) Points() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Point, len(b.points))
	copy(out, b.points)
	return out
}

// Len returns the number of buffered points.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// History returns a copy of the archived digests, newest first.
func (b *Buffer) History() []DigestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DigestEntry, len(b.history))
	copy(out, b.history)
	return out
}

// Recent returns at most n digests, newest first. n <= 0 returns all.
func (b *Buffer) Recent(n int) []DigestEntry {
	h := b.History()
	if n > 0 && n < len(h) {
		h = h[:n]
	}
	return h
}

func (b *Buffer) savePointsLocked() {
	points := b.points
	if points == nil {
		points = []Point{}
	}
	if err := b.pointsStore.Save(points); err != nil {
		b.logger.Error("discussion: failed to save buffer", "path", b.pointsStore.Path(), "error", err)
	}
}

func (b *Buffer) saveHistoryLocked() {
	if err := b.historyStore.Save(b.history); err != nil {
		b.logger.Error("discussion: failed to save history", "path", b.historyStore.Path(), "error", err)
	}
}

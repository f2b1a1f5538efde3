package discussion

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/recall/internal/telemetry"
)

// ErrSummaryFailed is returned by Flush when the summarizer could not
// produce a digest. The buffer is left untouched for the next attempt.
var ErrSummaryFailed = errors.New("discussion: summary generation failed")

// Digester summarizes the buffer, archives the digest and clears the buffer.
type Digester struct {
	buffer     *Buffer
	summarizer Summarizer
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
}

// NewDigester creates a Digester. tracing may be nil.
func NewDigester(buffer *Buffer, summarizer Summarizer, logger *slog.Logger, metrics *telemetry.Metrics, tracing *telemetry.Tracing) *Digester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digester{
		buffer:     buffer,
		summarizer: summarizer,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracing.Tracer(),
	}
}

// Flush runs one digest. It reports false with no error when the buffer is
// empty.
func (d *Digester) Flush(ctx context.Context) (DigestEntry, bool, error) {
	ctx, span := d.tracer.Start(ctx, "discussion.flush")
	defer span.End()

	text, ok := d.buffer.GroupedText()
	if !ok {
		d.logger.Debug("discussion: nothing to digest")
		d.metrics.DigestFlushed(telemetry.DigestEmpty)
		span.SetAttributes(attribute.Int("discussion.points", 0))
		return DigestEntry{}, false, nil
	}

	summary := d.summarizer.SummarizeDiscussions(ctx, text)
	if summary == FailedSummaryText {
		d.metrics.DigestFlushed(telemetry.DigestFailed)
		span.RecordError(ErrSummaryFailed)
		span.SetStatus(codes.Error, ErrSummaryFailed.Error())
		return DigestEntry{}, false, ErrSummaryFailed
	}

	entry := d.buffer.Archive(summary)
	// Points added while summarizing are counted in entry but their text
	// is not in summary. Clear drops them with the rest.
	d.buffer.Clear()

	d.metrics.DigestFlushed(telemetry.DigestArchived)
	span.SetAttributes(attribute.Int("discussion.points", entry.PointCount))
	return entry, true, nil
}

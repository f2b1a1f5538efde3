package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/recall/internal/discussion"
)

// DefaultDigestSchedule flushes the discussion buffer every evening.
const DefaultDigestSchedule = "0 21 * * *"

// Flusher is the subset of discussion.Digester used by DiscussionDigestJob.
type Flusher interface {
	Flush(ctx context.Context) (discussion.DigestEntry, bool, error)
}

// DiscussionDigestJob summarizes and archives the discussion buffer.
type DiscussionDigestJob struct {
	Digester     Flusher
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultDigestSchedule
}

// Compile-time interface check.
var _ Job = (*DiscussionDigestJob)(nil)

// Name implements Job.
func (j *DiscussionDigestJob) Name() string { return "discussion_digest" }

// Schedule implements Job.
func (j *DiscussionDigestJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultDigestSchedule
}

// Run flushes the buffer once. An empty buffer is not an error.
func (j *DiscussionDigestJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, archived, err := j.Digester.Flush(ctx)
	if err != nil {
		return fmt.Errorf("cron: discussion digest: %w", err)
	}
	if archived && j.Logger != nil {
		j.Logger.Info("cron: discussion digest archived", "date", entry.Date, "points", entry.PointCount)
	}
	return nil
}

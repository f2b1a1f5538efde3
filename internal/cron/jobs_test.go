package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/flemzord/recall/internal/cron"
	"github.com/flemzord/recall/internal/cron/crontest"
	"github.com/flemzord/recall/internal/discussion"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDiscussionDigestJob_NameAndSchedule(t *testing.T) {
	t.Parallel()

	j := &cron.DiscussionDigestJob{}
	if j.Name() != "discussion_digest" {
		t.Errorf("Name() = %q", j.Name())
	}
	if j.Schedule() != cron.DefaultDigestSchedule {
		t.Errorf("Schedule() = %q, want default", j.Schedule())
	}

	j.ScheduleExpr = "@daily"
	if j.Schedule() != "@daily" {
		t.Errorf("Schedule() = %q, want @daily", j.Schedule())
	}
}

func TestDiscussionDigestJob_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flusher *crontest.MockFlusher
		wantErr bool
	}{
		{name: "archived", flusher: &crontest.MockFlusher{Archived: true, Entry: discussion.DigestEntry{Date: "2024-03-15", PointCount: 4}}},
		{name: "empty buffer", flusher: &crontest.MockFlusher{}},
		{name: "summary failed", flusher: &crontest.MockFlusher{Err: discussion.ErrSummaryFailed}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j := &cron.DiscussionDigestJob{Digester: tt.flusher, Logger: discardLogger()}
			err := j.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, discussion.ErrSummaryFailed) {
				t.Errorf("error %v does not wrap ErrSummaryFailed", err)
			}
			if tt.flusher.CallCount() != 1 {
				t.Errorf("Flush calls = %d", tt.flusher.CallCount())
			}
		})
	}
}

func TestDiscussionDigestJob_CancelledContext(t *testing.T) {
	t.Parallel()

	f := &crontest.MockFlusher{}
	j := &cron.DiscussionDigestJob{Digester: f}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if f.CallCount() != 0 {
		t.Error("Flush called with cancelled context")
	}
}

package discussion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/retry"
	"github.com/flemzord/recall/internal/telemetry"
)

// Summarizer sentinels.
const (
	FailedSummaryText = "Failed to generate summary."
	EmptySummaryText  = "No meaningful discussions to report."
)

// Summarizer turns grouped discussion text into a digest. It never fails:
// errors are reported as FailedSummaryText.
type Summarizer interface {
	SummarizeDiscussions(ctx context.Context, bufferText string) string
}

const summaryPrompt = `You are a helpful assistant summarizing the day's group chats.
Here are the raw discussion points, grouped by chat:

%s

Please provide a concise, bullet-point summary of the discussions.
- Group by Chat Name.
- Identify key topics and general sentiment.
- Ignore trivial chatter.
- Format neatly in Markdown.
- Start with "📢 **Daily Group Discussion Digest**"`

// LLMSummarizer is a Summarizer backed by a completion provider.
type LLMSummarizer struct {
	provider provider.Provider
	policy   retry.Policy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Compile-time interface check.
var _ Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer creates a summarizer whose provider calls are retried
// according to policy.
func NewLLMSummarizer(p provider.Provider, policy retry.Policy, logger *slog.Logger, metrics *telemetry.Metrics) *LLMSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSummarizer{provider: p, policy: policy, logger: logger, metrics: metrics}
}

// SummarizeDiscussions implements Summarizer.
func (s *LLMSummarizer) SummarizeDiscussions(ctx context.Context, bufferText string) string {
	if strings.TrimSpace(bufferText) == "" {
		return EmptySummaryText
	}

	req := provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: fmt.Sprintf(summaryPrompt, bufferText)},
		},
	}
	resp, err := retry.Value(ctx, s.policy, func(ctx context.Context) (provider.CompletionResponse, error) {
		return s.provider.Complete(ctx, req)
	},
		retry.WithLogger(s.logger, "discussion.summarize"),
		retry.WithNotify(func(int, error, time.Duration) { s.metrics.Retry("discussion.summarize") }),
	)
	if err != nil {
		s.logger.Error("discussion: summary generation failed", "error", err)
		return FailedSummaryText
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		s.logger.Warn("discussion: oracle returned an empty summary")
		return FailedSummaryText
	}
	return text
}

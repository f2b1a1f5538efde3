package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/retry"
	"github.com/flemzord/recall/internal/telemetry"
)

// noneMarker is what the model answers when a batch holds nothing durable.
const noneMarker = "NONE"

const extractionPrompt = `You are maintaining a long-term memory about the people in the chat log below.
Extract persistent, generalizable facts: preferences, relationships, roles,
recurring projects, decisions and goals. Ignore small talk and one-off events.

Answer with a JSON object of the form {"facts": ["...", "..."]}.
If there is nothing worth remembering, answer {"facts": []}.

Chat log (most recent first):
%s`

// LLMExtractor turns a rendered batch of audit-log lines into candidate facts
// using a completion provider.
type LLMExtractor struct {
	provider provider.Provider
	policy   retry.Policy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewLLMExtractor creates an extractor. Each provider call is retried
// according to policy.
func NewLLMExtractor(p provider.Provider, policy retry.Policy, logger *slog.Logger, metrics *telemetry.Metrics) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{provider: p, policy: policy, logger: logger, metrics: metrics}
}

// AnalyzeContextBatch returns the facts found in historyText. An empty batch
// yields no facts and no provider call.
func (e *LLMExtractor) AnalyzeContextBatch(ctx context.Context, historyText string) ([]string, error) {
	if strings.TrimSpace(historyText) == "" {
		return nil, nil
	}

	req := provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleUser, Content: fmt.Sprintf(extractionPrompt, historyText)},
		},
		ResponseFormat: provider.ResponseFormatJSON,
	}

	resp, err := retry.Value(ctx, e.policy, func(ctx context.Context) (provider.CompletionResponse, error) {
		return e.provider.Complete(ctx, req)
	},
		retry.WithLogger(e.logger, "memory.extract"),
		retry.WithNotify(func(int, error, time.Duration) { e.metrics.Retry("memory.extract") }),
	)
	if err != nil {
		return nil, fmt.Errorf("memory: extraction failed: %w", err)
	}

	return parseExtractedFacts(resp.Content), nil
}

// parseExtractedFacts accepts the JSON object the prompt asks for and falls
// back to one fact per line for models that ignore the response format.
func parseExtractedFacts(response string) []string {
	response = strings.TrimSpace(response)
	if response == "" || response == noneMarker {
		return nil
	}

	var doc struct {
		Facts []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &doc); err == nil {
		return cleanFacts(doc.Facts)
	}

	return cleanFacts(splitLines(response))
}

func cleanFacts(raw []string) []string {
	facts := make([]string, 0, len(raw))
	for _, f := range raw {
		f = strings.TrimSpace(trimBullet(strings.TrimSpace(f)))
		if f == "" || f == noneMarker {
			continue
		}
		facts = append(facts, f)
	}
	return facts
}

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// splitLines splits text by newlines, trimming whitespace and filtering blanks.
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// trimBullet removes leading bullet markers ("- ", "* ", "1. ", etc.).
func trimBullet(s string) string {
	if len(s) >= 2 && (s[0] == '-' || s[0] == '*') && s[1] == ' ' {
		return s[2:]
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(s) && s[i] == '.' && s[i+1] == ' ' {
		return s[i+2:]
	}
	return s
}

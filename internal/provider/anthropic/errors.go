package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/recall/internal/provider"
)

// overloadedStatus is the Anthropic-specific "overloaded" status code.
const overloadedStatus = 529

// mapError converts an SDK error into a provider sentinel. Context errors
// pass through untouched so retries stop on cancellation.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Error())
	case overloadedStatus, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, apiErr.Error())
	case http.StatusBadRequest:
		if isContextLengthError(apiErr.RawJSON()) {
			return fmt.Errorf("%w: %s", provider.ErrContextLength, apiErr.Error())
		}
		return fmt.Errorf("anthropic bad request: %w", err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", provider.ErrAuthentication, apiErr.StatusCode)
	default:
		return fmt.Errorf("anthropic error (HTTP %d): %w", apiErr.StatusCode, err)
	}
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// isContextLengthError reports whether a 400 body is about the context
// window. Unparseable bodies fall back to substring matching.
func isContextLengthError(raw string) bool {
	var body apiErrorBody
	if err := json.Unmarshal([]byte(raw), &body); err == nil && body.Error.Type != "" {
		if body.Error.Type != "invalid_request_error" {
			return false
		}
		raw = body.Error.Message
	}
	for _, needle := range []string{"context length", "too many tokens", "token limit", "prompt is too long"} {
		if strings.Contains(raw, needle) {
			return true
		}
	}
	return false
}

package anthropic

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// defaultMaxTokens bounds extraction and digest replies when the config
// leaves max_tokens unset. The Messages API requires a value.
const defaultMaxTokens = 1024

// defaultTimeout applies to each request, including SDK-side retries.
const defaultTimeout = 2 * time.Minute

// Config holds the settings for the Anthropic Messages API.
type Config struct {
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Headers   map[string]string
	Timeout   time.Duration
}

func (c *Config) defaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("anthropic: model is required"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("anthropic: max_tokens must not be negative"))
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("anthropic: base_url %q is not an http(s) URL", c.BaseURL))
		}
	}
	return errors.Join(errs...)
}

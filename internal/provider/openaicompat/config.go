package openaicompat

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Headers   map[string]string
	Timeout   time.Duration
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// validate returns an error if required fields are missing. The API key is
// optional so that local servers without authentication can be used.
func (c *Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errMissingField("base_url"))
	} else {
		u, err := url.Parse(c.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("openaicompat: base_url is not a valid URL: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("openaicompat: base_url scheme must be http or https, got %q", u.Scheme))
		}
	}
	if c.Model == "" {
		errs = append(errs, errMissingField("model"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("openaicompat: max_tokens must not be negative"))
	}
	return errors.Join(errs...)
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(field string) error {
	return fmt.Errorf("openaicompat: %s is required", field)
}

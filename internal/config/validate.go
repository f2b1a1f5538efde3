package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/flemzord/recall/internal/cron"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateOracle(cfg.Oracle)...)
	errs = append(errs, validateRetry(cfg.Retry)...)
	errs = append(errs, validateLearning(cfg.Learning)...)
	errs = append(errs, validateAudit(cfg.Audit)...)

	if cfg.Memory.FactsFile == "" {
		errs = append(errs, errors.New("config: memory.facts_file is required"))
	}
	if cfg.Discussion.BufferFile == "" {
		errs = append(errs, errors.New("config: discussion.buffer_file is required"))
	}
	if cfg.Discussion.HistoryFile == "" {
		errs = append(errs, errors.New("config: discussion.history_file is required"))
	}
	if cfg.Discussion.DigestSchedule != "" {
		if _, err := cron.ParseSchedule(cfg.Discussion.DigestSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: discussion.digest_schedule: %w", err))
		}
	}

	if cfg.Gateway.Enabled && cfg.Gateway.Listen == "" {
		errs = append(errs, errors.New("config: gateway.listen is required when the gateway is enabled"))
	}
	if cfg.Gateway.IngestPerMinute < 0 {
		errs = append(errs, errors.New("config: gateway.ingest_per_minute must not be negative"))
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level. Unknown values fall back to info.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func validateLog(l LogConfig) []error {
	var errs []error
	if l.Level != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
			errs = append(errs, fmt.Errorf("config: log.level %q: %w", l.Level, err))
		}
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format %q (supported: text, json)", l.Format))
	}
	return errs
}

func validateOracle(o OracleConfig) []error {
	var errs []error
	switch o.Kind {
	case OracleKindOpenAI, "":
		if o.BaseURL == "" {
			errs = append(errs, errors.New("config: oracle.base_url is required"))
		}
	case OracleKindAnthropic:
	default:
		errs = append(errs, fmt.Errorf("config: oracle.kind %q (supported: openai, anthropic)", o.Kind))
	}
	if o.BaseURL != "" {
		if u, err := url.Parse(o.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("config: oracle.base_url %q is not an absolute URL", o.BaseURL))
		}
	}
	if o.Model == "" {
		errs = append(errs, errors.New("config: oracle.model is required"))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, errors.New("config: oracle.max_tokens must not be negative"))
	}
	if o.Timeout < 0 {
		errs = append(errs, errors.New("config: oracle.timeout must not be negative"))
	}
	return errs
}

func validateRetry(r RetryConfig) []error {
	var errs []error
	if r.MaxRetries < 0 {
		errs = append(errs, errors.New("config: retry.max_retries must not be negative"))
	}
	if r.Base <= 0 {
		errs = append(errs, errors.New("config: retry.base must be positive"))
	}
	if r.MaxInterval < 0 {
		errs = append(errs, errors.New("config: retry.max_interval must not be negative"))
	}
	return errs
}

func validateLearning(l LearningConfig) []error {
	var errs []error
	if l.Interval <= 0 {
		errs = append(errs, errors.New("config: learning.interval must be positive"))
	}
	if l.RecoveryInterval <= 0 {
		errs = append(errs, errors.New("config: learning.recovery_interval must be positive"))
	}
	if l.BatchSize <= 0 {
		errs = append(errs, errors.New("config: learning.batch_size must be positive"))
	}
	if l.FetchLimit <= 0 {
		errs = append(errs, errors.New("config: learning.fetch_limit must be positive"))
	}
	if l.StateFile == "" {
		errs = append(errs, errors.New("config: learning.state_file is required"))
	}
	return errs
}

func validateAudit(a AuditConfig) []error {
	var errs []error
	switch a.Driver {
	case AuditDriverSQLite, AuditDriverJSONL:
	default:
		errs = append(errs, fmt.Errorf("config: audit.driver %q (supported: %s, %s)", a.Driver, AuditDriverSQLite, AuditDriverJSONL))
	}
	if a.Path == "" {
		errs = append(errs, errors.New("config: audit.path is required"))
	}
	return errs
}

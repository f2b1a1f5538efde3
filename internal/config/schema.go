// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for recall.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir holds every relative state file. Defaults to DefaultDataDir().
	DataDir string `yaml:"data_dir,omitempty"`

	Log        LogConfig        `yaml:"log"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Retry      RetryConfig      `yaml:"retry"`
	Learning   LearningConfig   `yaml:"learning"`
	Audit      AuditConfig      `yaml:"audit"`
	Memory     MemoryConfig     `yaml:"memory"`
	Discussion DiscussionConfig `yaml:"discussion"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// LogConfig selects the root slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Oracle kinds.
const (
	OracleKindOpenAI    = "openai"
	OracleKindAnthropic = "anthropic"
)

// OracleConfig configures the model endpoint used for fact extraction and
// discussion summaries.
type OracleConfig struct {
	// Kind selects the wire protocol: "openai" (any OpenAI-compatible
	// chat completions API) or "anthropic" (Messages API).
	Kind string `yaml:"kind,omitempty"`

	// BaseURL is required for "openai". For "anthropic" it overrides the
	// public endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey is used verbatim. APIKeyEnv names an environment variable that
	// is read instead when APIKey is empty.
	APIKey    string `yaml:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	Model     string            `yaml:"model"`
	MaxTokens int               `yaml:"max_tokens,omitempty"`
	Timeout   time.Duration     `yaml:"timeout,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// ResolveAPIKey returns APIKey, falling back to the APIKeyEnv variable.
func (o OracleConfig) ResolveAPIKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	if o.APIKeyEnv != "" {
		return os.Getenv(o.APIKeyEnv)
	}
	return ""
}

// RetryConfig is the backoff policy applied to every oracle call.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	Base        time.Duration `yaml:"base"`
	MaxInterval time.Duration `yaml:"max_interval,omitempty"`
}

// LearningConfig drives the learning pipeline and its loop.
type LearningConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Interval         time.Duration `yaml:"interval"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	BatchSize        int           `yaml:"batch_size"`
	FetchLimit       int           `yaml:"fetch_limit"`
	StateFile        string        `yaml:"state_file"`
}

// Audit drivers.
const (
	AuditDriverSQLite = "sqlite"
	AuditDriverJSONL  = "jsonl"
)

// AuditConfig selects where conversation entries are read from.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// MemoryConfig locates the fact store.
type MemoryConfig struct {
	FactsFile string `yaml:"facts_file"`
}

// DiscussionConfig locates the discussion buffer and digest history.
type DiscussionConfig struct {
	BufferFile     string `yaml:"buffer_file"`
	HistoryFile    string `yaml:"history_file"`
	DigestSchedule string `yaml:"digest_schedule"`
}

// GatewayConfig configures the HTTP and WebSocket surface.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Token   string `yaml:"token,omitempty"`

	// IngestPerMinute caps discussion points accepted per sender.
	// Zero disables the limit.
	IngestPerMinute int `yaml:"ingest_per_minute,omitempty"`
}

// TelemetryConfig configures Prometheus metrics and OTLP tracing.
type TelemetryConfig struct {
	Metrics      bool   `yaml:"metrics"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `yaml:"otlp_insecure,omitempty"`
	ServiceName  string `yaml:"service_name,omitempty"`
}

// Default returns a Config holding every default value. Load decodes the
// file on top of it so omitted keys keep their defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Log:     LogConfig{Level: "info", Format: "text"},
		Oracle: OracleConfig{
			Kind:      OracleKindOpenAI,
			MaxTokens: 1024,
			Timeout:   2 * time.Minute,
		},
		Retry: RetryConfig{MaxRetries: 3, Base: time.Second, MaxInterval: time.Minute},
		Learning: LearningConfig{
			Enabled:          true,
			Interval:         6 * time.Hour,
			RecoveryInterval: 10 * time.Minute,
			BatchSize:        200,
			FetchLimit:       1000,
			StateFile:        "learning_state.json",
		},
		Audit:  AuditConfig{Driver: AuditDriverSQLite, Path: "audit.db"},
		Memory: MemoryConfig{FactsFile: "facts.json"},
		Discussion: DiscussionConfig{
			BufferFile:     "discussions.json",
			HistoryFile:    "daily_history.json",
			DigestSchedule: "0 21 * * *",
		},
		Gateway:   GatewayConfig{Listen: "127.0.0.1:8787"},
		Telemetry: TelemetryConfig{Metrics: true, ServiceName: "recall"},
	}
}

// Path resolves a state file name against DataDir. Absolute names are
// returned unchanged.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

package gateway

import "time"

// Config holds HTTP gateway configuration.
type Config struct {
	Listen string

	// Token protects /api and /ws routes with a bearer token. Empty leaves
	// them open, which is only sensible on loopback.
	Token string

	// IngestPerMinute caps points accepted per sender. Zero disables it.
	IngestPerMinute int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8787"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

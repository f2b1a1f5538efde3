package app

import (
	"context"
	"fmt"
	"io"

	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/internal/cron"
	"github.com/flemzord/recall/internal/gateway"
	"github.com/flemzord/recall/internal/learning"
	"github.com/flemzord/recall/internal/mcpserver"
)

// RunParams configures the long-running service.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, config.ResolveConfigPath searches the standard locations.
	ConfigPath string

	// LogWriter receives log output. Defaults to os.Stderr.
	LogWriter io.Writer
}

// LoadConfig resolves, loads and validates the configuration file.
func LoadConfig(path string) (*config.Config, string, error) {
	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, resolved, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, resolved, err
	}
	return cfg, resolved, nil
}

// Open loads the configuration, builds the components and registers them
// on a core.App without starting anything.
func Open(ctx context.Context, params RunParams) (*core.App, error) {
	cfg, path, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}

	c, err := Build(ctx, cfg, Options{LogWriter: params.LogWriter})
	if err != nil {
		return nil, err
	}
	c.Logger.Info("app: configuration loaded", "path", path, "data_dir", cfg.DataDir)

	application, err := c.Service()
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return application, nil
}

// Run starts the learning loop, the digest scheduler and the gateway, and
// blocks until a shutdown signal arrives or ctx is cancelled.
func Run(ctx context.Context, params RunParams) error {
	application, err := Open(ctx, params)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}

// Service registers the long-running components on a core.App. Shared
// resources are registered first so they are released last.
func (c *Components) Service() (*core.App, error) {
	cfg := c.Config
	application := core.NewApp(c.Logger)

	if err := application.Register("resources", c); err != nil {
		return nil, err
	}

	if cfg.Learning.Enabled {
		loop := learning.NewLoop(c.Pipeline, learning.LoopConfig{
			Interval:         cfg.Learning.Interval,
			RecoveryInterval: cfg.Learning.RecoveryInterval,
			Logger:           c.Logger,
		})
		if err := application.Register("learning", loop); err != nil {
			return nil, err
		}
	} else {
		c.Logger.Info("app: learning loop disabled")
	}

	scheduler := cron.NewScheduler(c.Logger)
	if err := scheduler.RegisterJob(&cron.DiscussionDigestJob{
		Digester:     c.Digester,
		Logger:       c.Logger,
		ScheduleExpr: cfg.Discussion.DigestSchedule,
	}); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if err := application.Register("cron", scheduler); err != nil {
		return nil, err
	}

	if cfg.Gateway.Enabled {
		if err := application.Register("gateway", c.Gateway()); err != nil {
			return nil, err
		}
	}

	return application, nil
}

// Gateway builds the HTTP surface over the components.
func (c *Components) Gateway() *gateway.Gateway {
	return gateway.New(gateway.Config{
		Listen:          c.Config.Gateway.Listen,
		Token:           c.Config.Gateway.Token,
		IngestPerMinute: c.Config.Gateway.IngestPerMinute,
	}, gateway.Deps{
		Facts:       c.Facts,
		Discussions: c.Buffer,
		Checkpoint:  c.Pipeline,
		Audit:       c.Audit,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	})
}

// MCP builds the stdio MCP server over the components.
func (c *Components) MCP(version string) *mcpserver.Server {
	return mcpserver.New(mcpserver.Deps{
		Facts:       c.Facts,
		Discussions: c.Buffer,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	}, version)
}

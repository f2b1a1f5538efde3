package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/recall/internal/config"
	"github.com/flemzord/recall/internal/provider"
	"github.com/flemzord/recall/internal/security"
	"github.com/flemzord/recall/pkg/app"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const probeTimeout = 15 * time.Second

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and print it with secrets masked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFlag(cmd)
			if len(args) == 1 {
				path = args[0]
			}
			cfg, resolved, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := printRedacted(cmd.OutOrStdout(), cfg); err != nil {
				return err
			}

			if probe, _ := cmd.Flags().GetBool("probe"); probe {
				if err := probeOracle(cmd, cfg); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", resolved)
			return nil
		},
	}
	check.Flags().Bool("probe", false, "Also check that the oracle endpoint answers")
	cmd.AddCommand(check)
	return cmd
}

func printRedacted(w io.Writer, cfg *config.Config) error {
	m, err := config.ToMap(cfg)
	if err != nil {
		return err
	}
	security.NewRedactor(cfg.Oracle.ResolveAPIKey(), cfg.Gateway.Token).RedactMap(m)
	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func probeOracle(cmd *cobra.Command, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()

	c, err := app.Build(ctx, cfg, app.Options{LogWriter: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(context.WithoutCancel(ctx)) }()

	hc, ok := c.Provider.(provider.HealthChecker)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "oracle: probe not supported")
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("oracle %s: %w", cfg.Oracle.BaseURL, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "oracle: %s reachable\n", c.Provider.ModelName())
	return nil
}

// initAnswers are the values collected by the init wizard.
type initAnswers struct {
	Kind           string
	BaseURL        string
	Model          string
	APIKeyEnv      string
	AuditDriver    string
	GatewayEnabled bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Kind:        config.OracleKindOpenAI,
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3.1",
		APIKeyEnv:   "RECALL_API_KEY",
		AuditDriver: config.AuditDriverSQLite,
	}
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initPath(args)
			if err != nil {
				return err
			}
			answers := defaultAnswers()
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				if err := runWizard(&answers); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("init aborted")
					}
					return err
				}
			}
			cfg, err := buildConfig(answers)
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

func initPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	paths := config.SearchPaths()
	if len(paths) == 0 {
		return "", errors.New("no configuration location available")
	}
	return paths[0], nil
}

func runWizard(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Oracle API").
				Options(
					huh.NewOption("OpenAI-compatible", config.OracleKindOpenAI),
					huh.NewOption("Anthropic", config.OracleKindAnthropic),
				).
				Value(&a.Kind),
			huh.NewInput().
				Title("Oracle base URL").
				Description("Required for OpenAI-compatible APIs; leave empty for the public Anthropic API").
				Value(&a.BaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Model").
				Value(&a.Model).
				Validate(huh.ValidateNotEmpty()),
			huh.NewInput().
				Title("Environment variable holding the API key").
				Description("Leave empty for endpoints without authentication").
				Value(&a.APIKeyEnv),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Audit log driver").
				Options(
					huh.NewOption("SQLite", config.AuditDriverSQLite),
					huh.NewOption("JSON lines", config.AuditDriverJSONL),
				).
				Value(&a.AuditDriver),
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Value(&a.GatewayEnabled),
		),
	)
	return form.Run()
}

func validateURL(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

func buildConfig(a initAnswers) (*config.Config, error) {
	cfg := config.Default()
	cfg.DataDir = config.DefaultDataDir()
	cfg.Oracle.Kind = a.Kind
	cfg.Oracle.BaseURL = a.BaseURL
	cfg.Oracle.Model = a.Model
	cfg.Oracle.APIKeyEnv = a.APIKeyEnv
	cfg.Audit.Driver = a.AuditDriver
	if a.AuditDriver == config.AuditDriverJSONL {
		cfg.Audit.Path = "audit.jsonl"
	}
	cfg.Gateway.Enabled = a.GatewayEnabled
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

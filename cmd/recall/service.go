package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flemzord/recall/internal/core"
	"github.com/flemzord/recall/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

const serviceName = "recall"

// program adapts the app lifecycle to the service manager's Start/Stop
// callbacks. Start returns once every component is running.
type program struct {
	params app.RunParams

	mu      sync.Mutex
	running *core.App
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running != nil {
		return errors.New("already running")
	}
	application, err := app.Open(context.Background(), p.params)
	if err != nil {
		return err
	}
	if err := application.Start(context.Background()); err != nil {
		return err
	}
	p.running = application
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	application := p.running
	p.running = nil
	p.mu.Unlock()
	if application != nil {
		application.Stop()
	}
	return nil
}

func serviceConfig(configPath string) (*service.Config, error) {
	args := []string{"service", "run"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "recall",
		Description: "Learns facts from the audit log and digests discussions.",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command) (service.Service, error) {
	path := configFlag(cmd)
	svcCfg, err := serviceConfig(path)
	if err != nil {
		return nil, err
	}
	prg := &program{params: app.RunParams{ConfigPath: path, LogWriter: os.Stderr}}
	s, err := service.New(prg, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return s, nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage recall as a system service",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install the system service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, _, err := app.LoadConfig(configFlag(cmd)); err != nil {
					return err
				}
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := s.Install(); err != nil {
					return fmt.Errorf("service: install: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Service installed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove the system service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := s.Uninstall(); err != nil {
					return fmt.Errorf("service: uninstall: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Service removed")
				return nil
			},
		},
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the service manager",
			Hidden: true,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				return s.Run()
			},
		},
	)
	return cmd
}

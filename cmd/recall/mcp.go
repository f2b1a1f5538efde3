package main

import (
	"context"
	"os"

	"github.com/flemzord/recall/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve facts and discussions over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				return c.MCP(version).ServeStdio(ctx, os.Stdin, os.Stdout)
			})
		},
	}
}

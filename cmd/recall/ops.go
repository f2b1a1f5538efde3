package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flemzord/recall/internal/discussion"
	"github.com/flemzord/recall/pkg/app"
	"github.com/spf13/cobra"
)

func learnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Run one learning cycle and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				report, err := c.Pipeline.DigestContext(ctx)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Summarize and archive the pending discussion points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				entry, archived, err := c.Digester.Flush(ctx)
				if err != nil {
					return err
				}
				if !archived {
					fmt.Fprintln(cmd.OutOrStdout(), discussion.NoPendingText)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), entry.String())
				return nil
			})
		},
	}
}

func factsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Print the learned facts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, func(_ context.Context, c *app.Components) error {
				if c.Facts.Len() == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No facts learned yet.")
					return nil
				}
				printMarkdown(cmd, c.Facts.RenderForPrompt())
				return nil
			})
		},
	}
	cmd.Flags().Bool("pretty", false, "Render as formatted markdown")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent discussion digests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, _ := cmd.Flags().GetInt("number")
			return withComponents(cmd, func(_ context.Context, c *app.Components) error {
				entries := c.Buffer.Recent(n)
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No digests yet.")
					return nil
				}
				parts := make([]string, len(entries))
				for i, e := range entries {
					parts[i] = e.String()
				}
				printMarkdown(cmd, strings.Join(parts, "\n\n"))
				return nil
			})
		},
	}
	cmd.Flags().IntP("number", "n", 5, "Number of digests to show (0 for all)")
	cmd.Flags().Bool("pretty", false, "Render as formatted markdown")
	return cmd
}

func pointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "point <chat> <sender> <summary>",
		Short: "Add a discussion point to the buffer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(_ context.Context, c *app.Components) error {
				c.Buffer.AddPoint(args[0], args[1], args[2])
				c.Metrics.PointIngested("cli")
				fmt.Fprintf(cmd.OutOrStdout(), "buffered (%d pending)\n", c.Buffer.Len())
				return nil
			})
		},
	}
}

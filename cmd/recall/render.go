package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// renderMarkdown renders markdown for terminal display. On failure the
// input is returned unchanged with the error.
func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}

// printMarkdown writes content to stdout, rendered when --pretty is set.
func printMarkdown(cmd *cobra.Command, content string) {
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		if rendered, err := renderMarkdown(content); err == nil {
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(content, "\n"))
}

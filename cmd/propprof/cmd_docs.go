package main

import (
	_ "embed"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

//go:embed docs/usage.md
var usageGuide string

// docsCmd renders the embedded usage guide
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the rendered usage guide",
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return fmt.Errorf("failed to build renderer: %w", err)
		}
		out, err := renderer.Render(usageGuide)
		if err != nil {
			return fmt.Errorf("failed to render guide: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propprof/cmd/propprof/ui"
	"propprof/internal/trace"
)

// browseCmd opens the interactive trace browser
var browseCmd = &cobra.Command{
	Use:   "browse [trace-file]",
	Short: "Browse a recorded trace interactively",
	Long: `Replays one trace file and opens an interactive view of the result:
a table of constraints, enter to drill into a constraint's rules, and a
scrollable pane with the raw overview text.

Keys: enter drill in, esc back, r raw overview, q quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	res, err := trace.ReplayFile(args[0])
	if err != nil {
		return err
	}
	logger.Debug("Trace replayed for browsing",
		zap.String("path", res.Path),
		zap.String("session", res.Session),
		zap.Int("constraints", len(res.Recorder.ConstraintIDs())))

	p := tea.NewProgram(
		ui.NewBrowseModel(res.Path, res.Session, res.Recorder),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}

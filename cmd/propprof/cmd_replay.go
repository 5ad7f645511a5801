package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propprof/cmd/propprof/ui"
	"propprof/internal/trace"
)

var (
	replayReportDir string
	replayPretty    bool
	replayWatch     string
)

// replayCmd rebuilds profiles from recorded traces
var replayCmd = &cobra.Command{
	Use:   "replay [trace-file...]",
	Short: "Rebuild profiling overviews from recorded trace files",
	Long: `Replays .jsonl traces captured with "demo --trace" and renders the same
overview the live run would have printed. Multiple files are replayed
concurrently; results keep the argument order.

With --watch, replay switches to following a directory: every trace that
lands in it is rendered once it has settled on disk. Watching renders each
finished file post hoc; it does not stream a running solve.

Examples:
  propprof replay traces/run.jsonl
  propprof replay traces/*.jsonl --report-dir overviews
  propprof replay --watch traces`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayReportDir, "report-dir", "", "Write one overview file per trace into this directory")
	replayCmd.Flags().BoolVar(&replayPretty, "pretty", false, "Render styled summary tables after each overview")
	replayCmd.Flags().StringVar(&replayWatch, "watch", "", "Watch a directory and replay traces as they land")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayWatch != "" {
		return runReplayWatch(cmd)
	}
	if len(args) == 0 {
		return fmt.Errorf("no trace files given (pass files or use --watch)")
	}

	if replayReportDir != "" {
		if err := os.MkdirAll(replayReportDir, 0755); err != nil {
			return fmt.Errorf("create report dir %s: %w", replayReportDir, err)
		}
	}

	results, err := trace.ReplayFiles(cmd.Context(), args)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := emitReplayResult(cmd, res); err != nil {
			return err
		}
	}
	return nil
}

func emitReplayResult(cmd *cobra.Command, res *trace.Result) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (session %s):\n", res.Path, res.Session)

	if replayReportDir != "" {
		name := strings.TrimSuffix(filepath.Base(res.Path), filepath.Ext(res.Path)) + ".txt"
		path := filepath.Join(replayReportDir, name)
		if err := res.Recorder.WriteReportFile(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "overview written to %s\n", path)
	} else if err := res.Recorder.RenderReport(out); err != nil {
		return err
	}

	if replayPretty {
		fmt.Fprint(out, "\n"+ui.RenderSummary(res.Recorder, ui.DefaultStyles()))
	}
	return nil
}

func runReplayWatch(cmd *cobra.Command) error {
	watcher, err := trace.NewWatcher(replayWatch, func(res *trace.Result) {
		if err := emitReplayResult(cmd, res); err != nil {
			logger.Warn("Failed to render replayed trace",
				zap.String("path", res.Path),
				zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	if err := watcher.Start(context.Background()); err != nil {
		return err
	}
	defer watcher.Stop()

	// Traces already on disk render first, then the watcher takes over.
	if err := watcher.TriggerReplay(); err != nil {
		logger.Warn("Initial directory sweep failed", zap.Error(err))
	}

	logger.Info("Watching for traces", zap.String("dir", replayWatch))
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for traces (ctrl-c to stop)\n", replayWatch)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("Received shutdown signal")

	stats := watcher.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d traces (%d errors)\n", stats.Replays, stats.Errors)
	return nil
}

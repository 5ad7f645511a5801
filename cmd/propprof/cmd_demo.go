package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propprof/cmd/propprof/ui"
	"propprof/internal/datalog"
	"propprof/internal/profiler"
	"propprof/internal/trace"
)

// Built-in sample: a four-edge chain whose transitive closure gives the
// profiler two rules and a non-trivial initial propagation to time.
const sampleProgram = `edge(/a, /b).
edge(/b, /c).
edge(/c, /d).
edge(/d, /e).

path(X, Y) :- edge(X, Y).
path(X, Z) :- edge(X, Y), path(Y, Z).
`

var (
	demoProgram  string
	demoReport   string
	demoTrace    string
	demoPretty   bool
	demoMaxFacts int
)

// demoCmd runs one propagation under the profiler
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a Datalog program under the propagation profiler",
	Long: `Loads a Mangle program, propagates it to fixpoint, and prints the
profiling overview: per-constraint initial propagation time plus timing,
invocation, and failure statistics for every rule.

Each IDB predicate is profiled as one constraint; each of its clauses is
one rule. A failed propagation (fact limit, evaluation error) still
produces an overview, with the failure attributed to whichever constraint
or rule was active.

Examples:
  propprof demo
  propprof demo --program closure.mg --pretty
  propprof demo --trace traces/run.jsonl --report overview.txt`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVarP(&demoProgram, "program", "p", "", "Mangle program file (default: built-in sample)")
	demoCmd.Flags().StringVar(&demoReport, "report", "", "Write the overview to this file instead of stdout")
	demoCmd.Flags().StringVar(&demoTrace, "trace", "", "Capture the profiling event stream to this .jsonl file")
	demoCmd.Flags().BoolVar(&demoPretty, "pretty", false, "Render styled summary tables after the overview")
	demoCmd.Flags().IntVar(&demoMaxFacts, "max-facts", 0, "Override the configured fact limit")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetEvalTimeout())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	src := sampleProgram
	if demoProgram != "" {
		data, err := os.ReadFile(demoProgram)
		if err != nil {
			return fmt.Errorf("read program %s: %w", demoProgram, err)
		}
		src = string(data)
	}

	rec := profiler.ForLevel(cfg.Profile.Level)

	var extras []profiler.Sink
	var tw *trace.Writer
	if demoTrace != "" {
		var err error
		tw, err = trace.Create(demoTrace)
		if err != nil {
			return err
		}
		extras = append(extras, tw)
	}

	engCfg := datalog.Config{
		FactLimit: cfg.Engine.MaxFacts,
		MaxRounds: cfg.Engine.MaxRounds,
	}
	if demoMaxFacts > 0 {
		engCfg.FactLimit = demoMaxFacts
	}

	engine, err := datalog.New(src, engCfg, rec, extras...)
	if err != nil {
		return err
	}

	logger.Info("Starting propagation",
		zap.String("run", engine.RunID()),
		zap.Int("constraints", len(engine.ConstraintIDs())),
		zap.Bool("profiling", engine.Profiling()))

	// A failed propagation is a profiled outcome, not a crash: report the
	// failure and render the overview that attributes it.
	if err := engine.Propagate(ctx); err != nil {
		logger.Warn("Propagation failed", zap.Error(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "propagation failed: %v\n", err)
	}

	if tw != nil {
		if err := tw.Close(); err != nil {
			logger.Warn("Trace capture incomplete", zap.Error(err))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "trace written to %s\n", demoTrace)
		}
	}

	logger.Info("Propagation finished",
		zap.Int("facts", engine.FactCount()),
		zap.Any("predicates", engine.PredicateCounts()))

	if !engine.Profiling() {
		fmt.Fprintln(cmd.OutOrStdout(), "profiling is off (profile.level=off); no overview to render")
		return nil
	}

	reportPath := demoReport
	if reportPath == "" {
		reportPath = cfg.Report.Path
	}
	if reportPath != "" {
		if err := engine.ExportReport(reportPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "overview written to %s\n", reportPath)
	} else {
		if err := engine.RenderReport(cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	if demoPretty || cfg.Report.Pretty {
		styles := ui.DefaultStyles()
		fmt.Fprint(cmd.OutOrStdout(), "\n"+ui.RenderSummary(rec, styles))
	}
	return nil
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"propprof/internal/config"
)

// resetDemoFlags clears the demo command's package-level flag state.
func resetDemoFlags() {
	demoProgram = ""
	demoReport = ""
	demoTrace = ""
	demoPretty = false
	demoMaxFacts = 0
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out, &errOut
}

func TestDemoCmd(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	resetDemoFlags()
	defer resetDemoFlags()

	dir := t.TempDir()
	demoReport = filepath.Join(dir, "overview.txt")
	demoTrace = filepath.Join(dir, "run.jsonl")
	demoPretty = true

	cmd, out, _ := newTestCommand()
	if err := runDemo(cmd, nil); err != nil {
		t.Fatalf("runDemo failed: %v", err)
	}

	report, err := os.ReadFile(demoReport)
	if err != nil {
		t.Fatalf("overview file not written: %v", err)
	}
	if !strings.Contains(string(report), "- Constraint: path/2") {
		t.Errorf("overview missing constraint block:\n%s", report)
	}
	if !strings.Contains(string(report), "- Demon: path/2#1") {
		t.Errorf("overview missing rule block:\n%s", report)
	}

	if _, err := os.Stat(demoTrace); err != nil {
		t.Errorf("trace file not written: %v", err)
	}

	if !strings.Contains(out.String(), "overview written to") {
		t.Errorf("stdout missing export notice: %q", out.String())
	}
	if !strings.Contains(out.String(), "Constraints") {
		t.Errorf("stdout missing pretty summary: %q", out.String())
	}
}

func TestDemoCmdProfilingOff(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Profile.Level = "off"
	resetDemoFlags()
	defer resetDemoFlags()

	cmd, out, _ := newTestCommand()
	if err := runDemo(cmd, nil); err != nil {
		t.Fatalf("runDemo failed: %v", err)
	}
	if !strings.Contains(out.String(), "profiling is off") {
		t.Errorf("expected profiling-off notice, got %q", out.String())
	}
	if strings.Contains(out.String(), "- Constraint:") {
		t.Errorf("unexpected overview with profiling off: %q", out.String())
	}
}

func TestDemoCmdFactLimitStillReports(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	resetDemoFlags()
	defer resetDemoFlags()

	demoMaxFacts = 5

	cmd, out, errOut := newTestCommand()
	if err := runDemo(cmd, nil); err != nil {
		t.Fatalf("runDemo failed: %v", err)
	}
	if !strings.Contains(errOut.String(), "propagation failed") {
		t.Errorf("expected failure notice on stderr, got %q", errOut.String())
	}
	if !strings.Contains(out.String(), "failures=1") {
		t.Errorf("expected overview attributing the failure, got %q", out.String())
	}
}

func TestReplayCmdRoundTrip(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	resetDemoFlags()
	defer resetDemoFlags()

	dir := t.TempDir()
	demoTrace = filepath.Join(dir, "run.jsonl")

	cmd, _, _ := newTestCommand()
	if err := runDemo(cmd, nil); err != nil {
		t.Fatalf("runDemo failed: %v", err)
	}

	tracePath := demoTrace
	resetDemoFlags()

	cmd, out, _ := newTestCommand()
	if err := runReplay(cmd, []string{tracePath}); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
	if !strings.Contains(out.String(), "- Constraint: path/2") {
		t.Errorf("replay output missing overview:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "session ") {
		t.Errorf("replay output missing session line:\n%s", out.String())
	}
}

func TestReplayCmdReportDir(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	resetDemoFlags()
	defer resetDemoFlags()

	dir := t.TempDir()
	demoTrace = filepath.Join(dir, "run.jsonl")

	cmd, _, _ := newTestCommand()
	if err := runDemo(cmd, nil); err != nil {
		t.Fatalf("runDemo failed: %v", err)
	}

	tracePath := demoTrace
	resetDemoFlags()
	replayReportDir = filepath.Join(dir, "overviews")
	defer func() { replayReportDir = "" }()

	cmd, _, _ = newTestCommand()
	if err := runReplay(cmd, []string{tracePath}); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}

	report, err := os.ReadFile(filepath.Join(replayReportDir, "run.txt"))
	if err != nil {
		t.Fatalf("per-trace overview not written: %v", err)
	}
	if !strings.Contains(string(report), "- Constraint: path/2") {
		t.Errorf("overview missing constraint block:\n%s", report)
	}
}

func TestReplayCmdRequiresInput(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()

	cmd, _, _ := newTestCommand()
	if err := runReplay(cmd, nil); err == nil {
		t.Fatal("expected error without files or --watch")
	}
}

func TestResolveConfigPath(t *testing.T) {
	cfgPath = ""
	if got := resolveConfigPath(); got != config.DefaultConfigPath() {
		t.Errorf("resolveConfigPath() = %q, want default", got)
	}

	cfgPath = "custom.yaml"
	defer func() { cfgPath = "" }()
	if got := resolveConfigPath(); got != "custom.yaml" {
		t.Errorf("resolveConfigPath() = %q, want custom.yaml", got)
	}
}

package ui

import (
	"strings"
	"testing"

	"propprof/internal/profiler"
)

// scriptedRecorder returns a recorder with one profiled constraint owning
// two rules, driven on a deterministic clock.
func scriptedRecorder() *profiler.Recorder {
	var now int64
	rec := profiler.NewWithClock(func() int64 { return now })

	rec.BeginConstraintPropagation("alldiff/3")
	rec.RegisterRule("alldiff/3#0")
	rec.RegisterRule("alldiff/3#1")
	now = 120
	rec.EndConstraintPropagation("alldiff/3")

	now = 200
	rec.BeginRuleRun("alldiff/3#0")
	now = 230
	rec.EndRuleRun("alldiff/3#0")

	now = 240
	rec.BeginRuleRun("alldiff/3#1")
	now = 255
	rec.SignalFailure()

	return rec
}

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("Test Table", []string{"Col1", "Col2"})
	table.AddRow("Row1Col1", "Row1Col2")

	styles := DefaultStyles()
	view := table.View(styles)

	t.Logf("View:\n%q", view)

	if !strings.Contains(view, "Test Table") {
		t.Error("View missing title")
	}
	if !strings.Contains(view, "Row1Col1") {
		t.Error("View missing cell content")
	}
}

func TestSimpleTableEmpty(t *testing.T) {
	table := NewSimpleTable("Empty", []string{"Col1"})
	if view := table.View(DefaultStyles()); view != "" {
		t.Errorf("expected empty view for table without rows, got %q", view)
	}
}

func TestConstraintTable(t *testing.T) {
	view := ConstraintTable(scriptedRecorder()).View(DefaultStyles())

	for _, want := range []string{"Constraint", "Fails", "Invocations", "alldiff/3", "120"} {
		if !strings.Contains(view, want) {
			t.Errorf("constraint table missing %q:\n%s", want, view)
		}
	}
}

func TestRuleTable(t *testing.T) {
	view := RuleTable(scriptedRecorder(), "alldiff/3").View(DefaultStyles())

	for _, want := range []string{"Rule", "Mean", "alldiff/3#0", "alldiff/3#1", "30.00", "15.00"} {
		if !strings.Contains(view, want) {
			t.Errorf("rule table missing %q:\n%s", want, view)
		}
	}
}

func TestRenderSummaryCoversAllConstraints(t *testing.T) {
	view := RenderSummary(scriptedRecorder(), DefaultStyles())

	if !strings.Contains(view, "Constraints") {
		t.Fatalf("summary missing constraint table")
	}
	if !strings.Contains(view, "Rules of alldiff/3") {
		t.Fatalf("summary missing rule table")
	}
}

package profiler

import (
	"math"
	"testing"
)

const statsEpsilon = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < statsEpsilon
}

func TestRunStats(t *testing.T) {
	tests := []struct {
		name       string
		durations  []int64
		wantTotal  int64
		wantMean   float64
		wantMedian float64
		wantStddev float64
	}{
		{
			name: "empty",
		},
		{
			name:       "single run",
			durations:  []int64{42},
			wantTotal:  42,
			wantMean:   42,
			wantMedian: 42,
			wantStddev: 0,
		},
		{
			name:       "odd count",
			durations:  []int64{10, 20, 30},
			wantTotal:  60,
			wantMean:   20,
			wantMedian: 20,
			wantStddev: math.Sqrt(200.0 / 3.0),
		},
		{
			name:       "even count",
			durations:  []int64{5, 15},
			wantTotal:  20,
			wantMean:   10,
			wantMedian: 10,
			wantStddev: 5,
		},
		{
			name:       "unsorted input",
			durations:  []int64{30, 10, 20, 40},
			wantTotal:  100,
			wantMean:   25,
			wantMedian: 25,
			wantStddev: math.Sqrt(500.0 / 4.0),
		},
		{
			name:       "identical runs",
			durations:  []int64{7, 7, 7, 7, 7},
			wantTotal:  35,
			wantMean:   7,
			wantMedian: 7,
			wantStddev: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, mean, median, stddev := runStats(tt.durations)
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if !almostEqual(mean, tt.wantMean) {
				t.Errorf("mean = %v, want %v", mean, tt.wantMean)
			}
			if !almostEqual(median, tt.wantMedian) {
				t.Errorf("median = %v, want %v", median, tt.wantMedian)
			}
			if !almostEqual(stddev, tt.wantStddev) {
				t.Errorf("stddev = %v, want %v", stddev, tt.wantStddev)
			}
		})
	}
}

func TestRunStatsDoesNotReorderInput(t *testing.T) {
	durations := []int64{30, 10, 20}
	runStats(durations)
	if durations[0] != 30 || durations[1] != 10 || durations[2] != 20 {
		t.Errorf("input slice reordered: %v", durations)
	}
}

func TestRuleSummaryFromSyntheticRuns(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")

	rec.InjectSyntheticRun("r1", 0, 10, false)
	rec.InjectSyntheticRun("r1", 100, 120, false)
	rec.InjectSyntheticRun("r1", 200, 230, true)

	s := rec.RuleSummary("r1")
	if s.Invocations != 3 {
		t.Errorf("invocations = %d, want 3", s.Invocations)
	}
	if s.Failures != 1 {
		t.Errorf("failures = %d, want 1", s.Failures)
	}
	if s.TotalRuntimeUS != 60 {
		t.Errorf("total runtime = %d, want 60", s.TotalRuntimeUS)
	}
	if !almostEqual(s.MeanUS, 20) {
		t.Errorf("mean = %v, want 20", s.MeanUS)
	}
	if !almostEqual(s.MedianUS, 20) {
		t.Errorf("median = %v, want 20", s.MedianUS)
	}
	if !almostEqual(s.StdDevUS, math.Sqrt(200.0/3.0)) {
		t.Errorf("stddev = %v, want %v", s.StdDevUS, math.Sqrt(200.0/3.0))
	}
}

func TestRuleSummaryNeverRan(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")

	s := rec.RuleSummary("r1")
	if s.Invocations != 0 || s.TotalRuntimeUS != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if s.MeanUS != 0 || s.MedianUS != 0 || s.StdDevUS != 0 {
		t.Errorf("expected zero statistics, got %+v", s)
	}
}

func TestSummaryPanicsOnOpenRun(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")
	rec.BeginRuleRun("r1")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic aggregating a rule with an open run")
		}
	}()
	rec.RuleSummary("r1")
}

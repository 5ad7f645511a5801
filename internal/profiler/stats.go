package profiler

import (
	"fmt"
	"math"
	"sort"
)

// ConstraintSummary aggregates one constraint's propagation phase and all of
// its rules' runs.
type ConstraintSummary struct {
	Failures             int64
	InitialPropagationUS int64
	Rules                int
	RuleInvocations      int64
	TotalRuleRuntimeUS   int64
}

// RuleSummary aggregates one rule's runs. Mean, median, and standard
// deviation are zero when the rule never ran.
type RuleSummary struct {
	Invocations    int64
	Failures       int64
	TotalRuntimeUS int64
	MeanUS         float64
	MedianUS       float64
	StdDevUS       float64
}

// ConstraintSummary computes the summary for a profiled constraint. Failures
// counts the constraint's own failed propagation plus every owned rule's
// failures; a single failure closes only one phase, so nothing is counted
// twice.
func (r *Recorder) ConstraintSummary(constraintID string) ConstraintSummary {
	rec, ok := r.constraints[constraintID]
	if !ok {
		panic(fmt.Sprintf("profiler: ConstraintSummary(%q): unknown constraint", constraintID))
	}

	s := ConstraintSummary{
		InitialPropagationUS: rec.endUS - rec.startUS,
		Rules:                len(rec.ruleIDs),
	}
	if rec.failed {
		s.Failures = 1
	}
	for _, ruleID := range rec.ruleIDs {
		rule := r.rules[ruleID]
		s.Failures += rule.failures
		s.RuleInvocations += int64(len(rule.startsUS))
		for _, d := range rule.durations() {
			s.TotalRuleRuntimeUS += d
		}
	}
	return s
}

// RuleSummary computes the run statistics for a profiled rule.
func (r *Recorder) RuleSummary(ruleID string) RuleSummary {
	rec, ok := r.rules[ruleID]
	if !ok {
		panic(fmt.Sprintf("profiler: RuleSummary(%q): unknown rule", ruleID))
	}

	durations := rec.durations()
	total, mean, median, stddev := runStats(durations)
	return RuleSummary{
		Invocations:    int64(len(durations)),
		Failures:       rec.failures,
		TotalRuntimeUS: total,
		MeanUS:         mean,
		MedianUS:       median,
		StdDevUS:       stddev,
	}
}

// durations pairs up start and end timestamps. Aggregation is only legal once
// every run is closed; an open run means the host's instrumentation calls are
// mismatched.
func (rec *ruleRecord) durations() []int64 {
	if len(rec.startsUS) != len(rec.endsUS) {
		panic(fmt.Sprintf("profiler: rule %q has %d starts but %d ends", rec.id, len(rec.startsUS), len(rec.endsUS)))
	}
	ds := make([]int64, len(rec.startsUS))
	for i := range rec.startsUS {
		ds[i] = rec.endsUS[i] - rec.startsUS[i]
	}
	return ds
}

// runStats reduces a set of run durations to total, mean, median, and
// population standard deviation. An empty set yields all zeros.
func runStats(durations []int64) (total int64, mean, median, stddev float64) {
	n := len(durations)
	if n == 0 {
		return 0, 0, 0, 0
	}

	for _, d := range durations {
		total += d
	}
	mean = float64(total) / float64(n)

	sorted := make([]int64, n)
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if n%2 == 1 {
		median = float64(sorted[n/2])
	} else {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	var sumSq float64
	for _, d := range durations {
		diff := float64(d) - mean
		sumSq += diff * diff
	}
	stddev = math.Sqrt(sumSq / float64(n))

	return total, mean, median, stddev
}

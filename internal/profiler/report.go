package profiler

import (
	"fmt"
	"io"
	"os"

	"propprof/internal/logging"
)

// Report line formats. The layout is the established profile-overview format
// emitted by constraint solvers; downstream tooling parses it, so it is kept
// byte-for-byte.
const (
	constraintLineFormat = "  - Constraint: %s\n                failures=%d, initial propagation runtime=%d us, demons=%d, demon invocations=%d, total demon runtime=%d us\n"
	ruleLineFormat       = "    - Demon: %s\n             invocations=%d, failures=%d, total runtime=%d us, [average=%.2f, median=%.2f, stddev=%.2f]\n"
)

// RenderReport writes the human-readable profile: one block per constraint in
// registration order, each followed by its rules in registration order.
func (r *Recorder) RenderReport(w io.Writer) error {
	for _, constraintID := range r.order {
		cs := r.ConstraintSummary(constraintID)
		if _, err := fmt.Fprintf(w, constraintLineFormat,
			constraintID, cs.Failures, cs.InitialPropagationUS, cs.Rules, cs.RuleInvocations, cs.TotalRuleRuntimeUS); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		for _, ruleID := range r.constraints[constraintID].ruleIDs {
			rs := r.RuleSummary(ruleID)
			if _, err := fmt.Fprintf(w, ruleLineFormat,
				ruleID, rs.Invocations, rs.Failures, rs.TotalRuntimeUS, rs.MeanUS, rs.MedianUS, rs.StdDevUS); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
	}
	return nil
}

// WriteReportFile renders the report to a file. An unwritable destination is
// an operational error, not a protocol violation; the profiling state stays
// intact and queryable.
func (r *Recorder) WriteReportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		logging.ProfilerWarn("failed to gain write access to %s: %v", path, err)
		return fmt.Errorf("open report file %s: %w", path, err)
	}
	if err := r.RenderReport(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file %s: %w", path, err)
	}
	logging.Profiler("profile overview exported to %s", path)
	return nil
}

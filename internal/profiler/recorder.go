// Package profiler records per-constraint and per-rule timing for a
// propagation engine. A Recorder is fed begin/end/failure events by the host
// engine, accumulates timestamped run intervals, and reduces them on demand
// into summaries and a text report.
//
// The Recorder is deliberately not safe for concurrent use: it models the
// strictly sequential call protocol of a single propagation loop. Drive it
// from one goroutine, or give each goroutine its own Recorder (the trace
// replayer does the latter).
package profiler

import (
	"fmt"
	"time"
)

// phase is the Recorder's activity latch. Exactly one phase is ever active;
// constraint propagation and rule runs never overlap.
type phase int

const (
	phaseIdle phase = iota
	phaseConstraint
	phaseRule
)

type constraintRecord struct {
	id      string
	startUS int64
	endUS   int64
	failed  bool
	ruleIDs []string // insertion order = first-registration order
}

type ruleRecord struct {
	id         string
	constraint string
	startsUS   []int64
	endsUS     []int64
	failures   int64
}

// Recorder owns all profiling state for one solving session.
type Recorder struct {
	clock func() int64 // elapsed microseconds since creation

	constraints map[string]*constraintRecord
	rules       map[string]*ruleRecord
	order       []string // constraint registration order

	phase    phase
	activeID string
}

// New returns a Recorder whose timestamps are measured from now using the
// monotonic clock.
func New() *Recorder {
	start := time.Now()
	return NewWithClock(func() int64 {
		return time.Since(start).Microseconds()
	})
}

// NewWithClock returns a Recorder that reads elapsed microseconds from clock.
// Used by tests and by the trace replayer, which drives a virtual clock from
// recorded event times.
func NewWithClock(clock func() int64) *Recorder {
	return &Recorder{
		clock:       clock,
		constraints: make(map[string]*constraintRecord),
		rules:       make(map[string]*ruleRecord),
	}
}

// ForLevel maps a configured profile level to a Recorder. Level "off" (or
// empty) disables profiling: callers treat the nil result as no sink.
func ForLevel(level string) *Recorder {
	if level == "" || level == "off" {
		return nil
	}
	return New()
}

// BeginConstraintPropagation opens the initial-propagation phase of the named
// constraint. Re-beginning a known constraint starts a fresh timing record
// but keeps its registered rules; the rule binding is permanent.
func (r *Recorder) BeginConstraintPropagation(constraintID string) {
	if r.phase != phaseIdle {
		panic(fmt.Sprintf("profiler: BeginConstraintPropagation(%q): %s still active", constraintID, r.activeDesc()))
	}
	rec, ok := r.constraints[constraintID]
	if !ok {
		rec = &constraintRecord{id: constraintID}
		r.constraints[constraintID] = rec
		r.order = append(r.order, constraintID)
	}
	rec.startUS = r.clock()
	rec.endUS = 0
	rec.failed = false
	r.phase = phaseConstraint
	r.activeID = constraintID
}

// EndConstraintPropagation closes the active constraint's propagation phase
// as successful.
func (r *Recorder) EndConstraintPropagation(constraintID string) {
	if r.phase != phaseConstraint || r.activeID != constraintID {
		panic(fmt.Sprintf("profiler: EndConstraintPropagation(%q): %s active", constraintID, r.activeDesc()))
	}
	rec := r.constraints[constraintID]
	rec.endUS = r.clock()
	rec.failed = false
	r.phase = phaseIdle
	r.activeID = ""
}

// RegisterRule records a rule identity and binds it to the constraint whose
// propagation phase is currently open. Registering a known rule again is a
// no-op.
func (r *Recorder) RegisterRule(ruleID string) {
	if _, ok := r.rules[ruleID]; ok {
		return
	}
	if r.phase != phaseConstraint {
		panic(fmt.Sprintf("profiler: RegisterRule(%q): no constraint propagation in progress", ruleID))
	}
	ct := r.constraints[r.activeID]
	r.rules[ruleID] = &ruleRecord{id: ruleID, constraint: ct.id}
	ct.ruleIDs = append(ct.ruleIDs, ruleID)
}

// BeginRuleRun opens a run of a registered rule.
func (r *Recorder) BeginRuleRun(ruleID string) {
	if r.phase != phaseIdle {
		panic(fmt.Sprintf("profiler: BeginRuleRun(%q): %s still active", ruleID, r.activeDesc()))
	}
	rec, ok := r.rules[ruleID]
	if !ok {
		panic(fmt.Sprintf("profiler: BeginRuleRun(%q): rule not registered", ruleID))
	}
	rec.startsUS = append(rec.startsUS, r.clock())
	r.phase = phaseRule
	r.activeID = ruleID
}

// EndRuleRun closes the active rule's current run as successful.
func (r *Recorder) EndRuleRun(ruleID string) {
	if r.phase != phaseRule || r.activeID != ruleID {
		panic(fmt.Sprintf("profiler: EndRuleRun(%q): %s active", ruleID, r.activeDesc()))
	}
	rec := r.rules[ruleID]
	rec.endsUS = append(rec.endsUS, r.clock())
	r.phase = phaseIdle
	r.activeID = ""
}

// SignalFailure attributes a propagation failure to whichever phase is open.
// An active constraint has its phase closed with the failure flag set; an
// active rule has its run closed and its failure counter incremented. With
// neither active the failure happened outside any tracked phase and nothing
// is recorded.
func (r *Recorder) SignalFailure() {
	switch r.phase {
	case phaseConstraint:
		rec := r.constraints[r.activeID]
		rec.endUS = r.clock()
		rec.failed = true
	case phaseRule:
		rec := r.rules[r.activeID]
		rec.endsUS = append(rec.endsUS, r.clock())
		rec.failures++
	default:
		return
	}
	r.phase = phaseIdle
	r.activeID = ""
}

// InjectSyntheticRun appends a run with explicit timestamps to a registered
// rule, bypassing the begin/end protocol. Intended for tests and for trace
// replay.
func (r *Recorder) InjectSyntheticRun(ruleID string, startUS, endUS int64, failed bool) {
	rec, ok := r.rules[ruleID]
	if !ok {
		panic(fmt.Sprintf("profiler: InjectSyntheticRun(%q): rule not registered", ruleID))
	}
	rec.startsUS = append(rec.startsUS, startUS)
	rec.endsUS = append(rec.endsUS, endUS)
	if failed {
		rec.failures++
	}
}

// Reset discards every record and returns the Recorder to its initial state.
// Only legal between runs, while no phase is open.
func (r *Recorder) Reset() {
	if r.phase != phaseIdle {
		panic(fmt.Sprintf("profiler: Reset: %s still active", r.activeDesc()))
	}
	r.constraints = make(map[string]*constraintRecord)
	r.rules = make(map[string]*ruleRecord)
	r.order = nil
}

// ConstraintIDs returns the profiled constraints in registration order.
func (r *Recorder) ConstraintIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RuleIDs returns the rules owned by a constraint in registration order.
func (r *Recorder) RuleIDs(constraintID string) []string {
	rec, ok := r.constraints[constraintID]
	if !ok {
		panic(fmt.Sprintf("profiler: RuleIDs(%q): unknown constraint", constraintID))
	}
	out := make([]string, len(rec.ruleIDs))
	copy(out, rec.ruleIDs)
	return out
}

func (r *Recorder) activeDesc() string {
	switch r.phase {
	case phaseConstraint:
		return fmt.Sprintf("constraint %q", r.activeID)
	case phaseRule:
		return fmt.Sprintf("rule %q", r.activeID)
	default:
		return "nothing"
	}
}

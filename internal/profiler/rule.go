package profiler

import "context"

// Sink is the ingestion surface the host engine drives. Recorder implements
// it for live profiling; trace.Writer implements it to persist the same call
// stream for later replay.
type Sink interface {
	BeginConstraintPropagation(constraintID string)
	EndConstraintPropagation(constraintID string)
	RegisterRule(ruleID string)
	BeginRuleRun(ruleID string)
	EndRuleRun(ruleID string)
	SignalFailure()
	InjectSyntheticRun(ruleID string, startUS, endUS int64, failed bool)
}

var _ Sink = (*Recorder)(nil)

// Rule is one propagation callback as the host engine dispatches it.
type Rule interface {
	ID() string
	Run(ctx context.Context) error
}

// Profile registers the rule with the sink and returns a wrapped rule whose
// runs are bracketed with begin/end notifications. Must be called while the
// owning constraint's propagation phase is open, which is where rule
// registration belongs. A nil sink returns the rule unwrapped, so a host with
// profiling disabled pays nothing.
//
// On a failed run the wrapper signals the failure instead of ending the run;
// the sink closes the run and attributes the failure to this rule.
func Profile(sink Sink, rule Rule) Rule {
	if sink == nil {
		return rule
	}
	sink.RegisterRule(rule.ID())
	return &profiledRule{sink: sink, inner: rule}
}

type profiledRule struct {
	sink  Sink
	inner Rule
}

func (p *profiledRule) ID() string { return p.inner.ID() }

func (p *profiledRule) Run(ctx context.Context) error {
	p.sink.BeginRuleRun(p.inner.ID())
	if err := p.inner.Run(ctx); err != nil {
		p.sink.SignalFailure()
		return err
	}
	p.sink.EndRuleRun(p.inner.ID())
	return nil
}

// MultiSink fans one event stream out to several sinks, typically a live
// Recorder plus a trace Writer. Nil entries are dropped; with no usable sinks
// the result is nil, which callers already treat as profiling disabled.
func MultiSink(sinks ...Sink) Sink {
	kept := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

type multiSink []Sink

func (m multiSink) BeginConstraintPropagation(constraintID string) {
	for _, s := range m {
		s.BeginConstraintPropagation(constraintID)
	}
}

func (m multiSink) EndConstraintPropagation(constraintID string) {
	for _, s := range m {
		s.EndConstraintPropagation(constraintID)
	}
}

func (m multiSink) RegisterRule(ruleID string) {
	for _, s := range m {
		s.RegisterRule(ruleID)
	}
}

func (m multiSink) BeginRuleRun(ruleID string) {
	for _, s := range m {
		s.BeginRuleRun(ruleID)
	}
}

func (m multiSink) EndRuleRun(ruleID string) {
	for _, s := range m {
		s.EndRuleRun(ruleID)
	}
}

func (m multiSink) SignalFailure() {
	for _, s := range m {
		s.SignalFailure()
	}
}

func (m multiSink) InjectSyntheticRun(ruleID string, startUS, endUS int64, failed bool) {
	for _, s := range m {
		s.InjectSyntheticRun(ruleID, startUS, endUS, failed)
	}
}

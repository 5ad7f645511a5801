package profiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a Recorder through scripted timestamps.
type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func newTestRecorder() (*Recorder, *fakeClock) {
	clk := &fakeClock{}
	return NewWithClock(clk.Now), clk
}

func TestConstraintPropagationLifecycle(t *testing.T) {
	rec, clk := newTestRecorder()

	clk.now = 100
	rec.BeginConstraintPropagation("c1")
	clk.now = 250
	rec.EndConstraintPropagation("c1")

	s := rec.ConstraintSummary("c1")
	assert.Equal(t, int64(0), s.Failures)
	assert.Equal(t, int64(150), s.InitialPropagationUS)
	assert.Equal(t, 0, s.Rules)
	assert.Equal(t, []string{"c1"}, rec.ConstraintIDs())
}

func TestEndToEndSequence(t *testing.T) {
	rec, clk := newTestRecorder()

	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	clk.now = 40
	rec.EndConstraintPropagation("c1")

	clk.now = 50
	rec.BeginRuleRun("r1")
	clk.now = 75
	rec.EndRuleRun("r1")

	cs := rec.ConstraintSummary("c1")
	assert.Equal(t, int64(0), cs.Failures)
	assert.Equal(t, 1, cs.Rules)
	assert.Equal(t, int64(1), cs.RuleInvocations)
	assert.Equal(t, int64(25), cs.TotalRuleRuntimeUS)

	rs := rec.RuleSummary("r1")
	assert.Equal(t, int64(1), rs.Invocations)
	assert.Equal(t, int64(0), rs.Failures)
	assert.Equal(t, int64(25), rs.TotalRuntimeUS)
}

func TestProtocolViolationsPanic(t *testing.T) {
	t.Run("begin constraint while constraint active", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		assert.Panics(t, func() { rec.BeginConstraintPropagation("c2") })
	})

	t.Run("begin constraint while rule active", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.EndConstraintPropagation("c1")
		rec.BeginRuleRun("r1")
		assert.Panics(t, func() { rec.BeginConstraintPropagation("c2") })
	})

	t.Run("end constraint without begin", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.EndConstraintPropagation("c1") })
	})

	t.Run("end constraint with wrong identity", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		assert.Panics(t, func() { rec.EndConstraintPropagation("c2") })
	})

	t.Run("register rule without active constraint", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.RegisterRule("r1") })
	})

	t.Run("begin run of unregistered rule", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.BeginRuleRun("r1") })
	})

	t.Run("begin run while constraint active", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		assert.Panics(t, func() { rec.BeginRuleRun("r1") })
	})

	t.Run("begin run while another run open", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.RegisterRule("r2")
		rec.EndConstraintPropagation("c1")
		rec.BeginRuleRun("r1")
		assert.Panics(t, func() { rec.BeginRuleRun("r2") })
	})

	t.Run("end run with wrong identity", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.RegisterRule("r2")
		rec.EndConstraintPropagation("c1")
		rec.BeginRuleRun("r1")
		assert.Panics(t, func() { rec.EndRuleRun("r2") })
	})

	t.Run("inject for unregistered rule", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.InjectSyntheticRun("r1", 0, 10, false) })
	})

	t.Run("summary of unknown constraint", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.ConstraintSummary("c1") })
	})

	t.Run("summary of unknown rule", func(t *testing.T) {
		rec, _ := newTestRecorder()
		assert.Panics(t, func() { rec.RuleSummary("r1") })
	})

	t.Run("reset while constraint active", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		assert.Panics(t, func() { rec.Reset() })
	})
}

func TestFailureAttribution(t *testing.T) {
	t.Run("constraint active", func(t *testing.T) {
		rec, clk := newTestRecorder()
		clk.now = 10
		rec.BeginConstraintPropagation("c1")
		clk.now = 60
		rec.SignalFailure()

		s := rec.ConstraintSummary("c1")
		assert.Equal(t, int64(1), s.Failures)
		assert.Equal(t, int64(50), s.InitialPropagationUS)

		// The phase is closed: a new propagation may begin.
		rec.BeginConstraintPropagation("c2")
		rec.EndConstraintPropagation("c2")
	})

	t.Run("rule active", func(t *testing.T) {
		rec, clk := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.EndConstraintPropagation("c1")

		clk.now = 100
		rec.BeginRuleRun("r1")
		clk.now = 130
		rec.SignalFailure()

		rs := rec.RuleSummary("r1")
		assert.Equal(t, int64(1), rs.Invocations)
		assert.Equal(t, int64(1), rs.Failures)
		assert.Equal(t, int64(30), rs.TotalRuntimeUS)

		// Only the rule is charged, not the constraint's own flag.
		cs := rec.ConstraintSummary("c1")
		assert.Equal(t, int64(1), cs.Failures)
	})

	t.Run("nothing active is a no-op", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.EndConstraintPropagation("c1")

		rec.SignalFailure()

		assert.Equal(t, int64(0), rec.ConstraintSummary("c1").Failures)
		assert.Equal(t, int64(0), rec.RuleSummary("r1").Failures)
	})

	t.Run("rule failures accumulate", func(t *testing.T) {
		rec, _ := newTestRecorder()
		rec.BeginConstraintPropagation("c1")
		rec.RegisterRule("r1")
		rec.EndConstraintPropagation("c1")

		for i := 0; i < 3; i++ {
			rec.BeginRuleRun("r1")
			rec.SignalFailure()
		}

		assert.Equal(t, int64(3), rec.RuleSummary("r1").Failures)
		assert.Equal(t, int64(3), rec.ConstraintSummary("c1").Failures)
	})
}

func TestRegisterRuleIdempotent(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")

	require.Equal(t, []string{"r1"}, rec.RuleIDs("c1"))

	// Still bound to c1 even when another constraint re-registers it.
	rec.BeginConstraintPropagation("c2")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c2")

	assert.Equal(t, []string{"r1"}, rec.RuleIDs("c1"))
	assert.Empty(t, rec.RuleIDs("c2"))
}

func TestReBeginReplacesTimingKeepsRules(t *testing.T) {
	rec, clk := newTestRecorder()

	clk.now = 10
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	clk.now = 20
	rec.SignalFailure()

	clk.now = 100
	rec.BeginConstraintPropagation("c1")
	clk.now = 400
	rec.EndConstraintPropagation("c1")

	s := rec.ConstraintSummary("c1")
	assert.Equal(t, int64(0), s.Failures, "fresh phase clears the failure flag")
	assert.Equal(t, int64(300), s.InitialPropagationUS)
	assert.Equal(t, 1, s.Rules, "rule binding survives re-begin")
	assert.Equal(t, []string{"c1"}, rec.ConstraintIDs(), "no duplicate registration")
}

func TestReset(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")
	rec.InjectSyntheticRun("r1", 0, 10, true)

	rec.Reset()

	assert.Empty(t, rec.ConstraintIDs())
	assert.Panics(t, func() { rec.ConstraintSummary("c1") })
	assert.Panics(t, func() { rec.RuleSummary("r1") })

	// The Recorder is reusable after a reset.
	rec.BeginConstraintPropagation("c1")
	rec.RegisterRule("r1")
	rec.EndConstraintPropagation("c1")
	assert.Equal(t, int64(0), rec.RuleSummary("r1").Failures)
}

func TestForLevel(t *testing.T) {
	assert.Nil(t, ForLevel(""))
	assert.Nil(t, ForLevel("off"))
	assert.NotNil(t, ForLevel("rules"))
}

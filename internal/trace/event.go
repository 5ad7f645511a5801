// Package trace captures a profiling session as a JSONL event log and
// rebuilds Recorder state from such logs. The first line of a trace file is
// a Header; every following line is one Event per Sink call, so replaying a
// file reproduces the live summaries exactly.
package trace

// Event ops, the wire vocabulary of a trace file.
const (
	OpBeginConstraint = "begin_constraint"
	OpEndConstraint   = "end_constraint"
	OpRegisterRule    = "register_rule"
	OpBeginRule       = "begin_rule"
	OpEndRule         = "end_rule"
	OpFailure         = "failure"
	OpSynthetic       = "synthetic"
)

// Header is the first line of a trace file.
type Header struct {
	Version int    `json:"v"`
	Session string `json:"session"`
	Start   string `json:"start"` // RFC3339 wall-clock time of capture start
}

// Event is one recorded Sink call. TimeUS is microseconds since capture
// start for all ops except synthetic, which carries its own interval.
type Event struct {
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	TimeUS  int64  `json:"t,omitempty"`
	StartUS int64  `json:"start,omitempty"`
	EndUS   int64  `json:"end,omitempty"`
	Fail    bool   `json:"fail,omitempty"`
}

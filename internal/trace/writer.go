package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"propprof/internal/logging"
	"propprof/internal/profiler"
)

// Writer streams Sink calls to a JSONL trace. It stamps events from its own
// monotonic clock, anchored at construction, so the file carries the live
// timeline. Sink methods cannot return errors; the first write failure
// sticks and is reported by Close.
type Writer struct {
	file    *os.File // nil unless the Writer owns the destination
	bw      *bufio.Writer
	enc     *json.Encoder
	clock   func() int64
	session string
	err     error
}

var _ profiler.Sink = (*Writer)(nil)

// NewWriter starts a trace on w, emitting the session header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	start := time.Now()
	return NewWriterWithClock(w, func() int64 {
		return time.Since(start).Microseconds()
	})
}

// NewWriterWithClock is NewWriter with an injected microsecond clock.
func NewWriterWithClock(w io.Writer, clock func() int64) (*Writer, error) {
	bw := bufio.NewWriter(w)
	tw := &Writer{
		bw:      bw,
		enc:     json.NewEncoder(bw),
		clock:   clock,
		session: uuid.NewString(),
	}

	hdr := Header{
		Version: 1,
		Session: tw.session,
		Start:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := tw.enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return tw, nil
}

// Create starts a trace file at path. Close flushes and closes it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file %s: %w", path, err)
	}
	tw, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	tw.file = f
	logging.TraceDebug("trace capture started: %s (session %s)", path, tw.session)
	return tw, nil
}

// Session returns the session ID written in the header.
func (w *Writer) Session() string { return w.session }

// Err returns the first write failure, if any.
func (w *Writer) Err() error { return w.err }

// Close flushes buffered events and closes an owned file. It returns the
// first error seen over the Writer's lifetime.
func (w *Writer) Close() error {
	if w.err == nil {
		w.err = w.bw.Flush()
	} else {
		w.bw.Flush()
	}
	if w.file != nil {
		if cerr := w.file.Close(); w.err == nil {
			w.err = cerr
		}
		w.file = nil
	}
	if w.err != nil {
		return fmt.Errorf("close trace: %w", w.err)
	}
	return nil
}

func (w *Writer) emit(ev Event) {
	if w.err != nil {
		return
	}
	w.err = w.enc.Encode(ev)
}

// BeginConstraintPropagation records the start of a constraint's initial
// propagation.
func (w *Writer) BeginConstraintPropagation(constraintID string) {
	w.emit(Event{Op: OpBeginConstraint, ID: constraintID, TimeUS: w.clock()})
}

// EndConstraintPropagation records the end of a constraint's initial
// propagation.
func (w *Writer) EndConstraintPropagation(constraintID string) {
	w.emit(Event{Op: OpEndConstraint, ID: constraintID, TimeUS: w.clock()})
}

// RegisterRule records a rule registration.
func (w *Writer) RegisterRule(ruleID string) {
	w.emit(Event{Op: OpRegisterRule, ID: ruleID, TimeUS: w.clock()})
}

// BeginRuleRun records the start of a rule invocation.
func (w *Writer) BeginRuleRun(ruleID string) {
	w.emit(Event{Op: OpBeginRule, ID: ruleID, TimeUS: w.clock()})
}

// EndRuleRun records the end of a rule invocation.
func (w *Writer) EndRuleRun(ruleID string) {
	w.emit(Event{Op: OpEndRule, ID: ruleID, TimeUS: w.clock()})
}

// SignalFailure records a propagation failure.
func (w *Writer) SignalFailure() {
	w.emit(Event{Op: OpFailure, TimeUS: w.clock()})
}

// InjectSyntheticRun records a synthetic run with its literal interval.
func (w *Writer) InjectSyntheticRun(ruleID string, startUS, endUS int64, failed bool) {
	w.emit(Event{Op: OpSynthetic, ID: ruleID, StartUS: startUS, EndUS: endUS, Fail: failed})
}

package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"propprof/internal/logging"
	"propprof/internal/profiler"
)

// maxLineBytes bounds a single trace line. Events are small; anything past
// this is not a trace we wrote.
const maxLineBytes = 1 << 20

// Result is one replayed trace.
type Result struct {
	Path     string
	Session  string
	Recorder *profiler.Recorder
}

// Replay rebuilds a Recorder from a trace stream. The Recorder runs on a
// virtual clock driven by event timestamps, so its summaries match the live
// session that produced the trace. Corrupt or ill-ordered input comes back
// as an error, never a panic.
func Replay(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		return nil, fmt.Errorf("empty trace")
	}

	var hdr Header
	if err := json.Unmarshal(scanner.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("parse trace header: %w", err)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("unsupported trace version %d", hdr.Version)
	}

	var now int64
	rec := profiler.NewWithClock(func() int64 { return now })

	// Mirror of the recorder's active phase, tracked from the event stream
	// so a truncated file is caught at EOF instead of blowing up a later
	// summary call.
	open := ""

	line := 1
	events := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		if err := apply(rec, &now, ev); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", line, err)
		}
		events++

		switch ev.Op {
		case OpBeginConstraint:
			open = fmt.Sprintf("constraint %q", ev.ID)
		case OpBeginRule:
			open = fmt.Sprintf("rule %q", ev.ID)
		case OpEndConstraint, OpEndRule, OpFailure:
			open = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	if open != "" {
		return nil, fmt.Errorf("trace truncated: ends with %s still active", open)
	}

	logging.TraceDebug("replayed %d events (session %s)", events, hdr.Session)
	return &Result{Session: hdr.Session, Recorder: rec}, nil
}

// apply feeds one event into the recorder. A protocol panic here means the
// trace is corrupt, which is an input problem at this boundary, not a
// caller bug, so it is converted to an error.
func apply(rec *profiler.Recorder, now *int64, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt trace: %v", r)
		}
	}()

	if ev.Op != OpSynthetic {
		*now = ev.TimeUS
	}

	switch ev.Op {
	case OpBeginConstraint:
		rec.BeginConstraintPropagation(ev.ID)
	case OpEndConstraint:
		rec.EndConstraintPropagation(ev.ID)
	case OpRegisterRule:
		rec.RegisterRule(ev.ID)
	case OpBeginRule:
		rec.BeginRuleRun(ev.ID)
	case OpEndRule:
		rec.EndRuleRun(ev.ID)
	case OpFailure:
		rec.SignalFailure()
	case OpSynthetic:
		rec.InjectSyntheticRun(ev.ID, ev.StartUS, ev.EndUS, ev.Fail)
	default:
		err = fmt.Errorf("unknown trace op %q", ev.Op)
	}
	return err
}

// ReplayFile replays a trace file from disk.
func ReplayFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", path, err)
	}
	defer f.Close()

	res, err := Replay(f)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	res.Path = path
	return res, nil
}

// ReplayFiles replays several trace files concurrently, one Recorder per
// file. Results come back in input order; the first failure cancels the
// rest.
func ReplayFiles(ctx context.Context, paths []string) ([]*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*Result, len(paths))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := ReplayFile(path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

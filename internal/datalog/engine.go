// Package datalog runs Mangle programs as a small constraint network whose
// propagation is observed through the profiler. Each IDB predicate acts as
// one constraint and each of its clauses as one propagation rule, so a plain
// Datalog fixpoint becomes a realistic profiling subject.
package datalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"
	"github.com/google/uuid"

	"propprof/internal/logging"
	"propprof/internal/profiler"
)

// Config holds engine limits.
type Config struct {
	// FactLimit caps the total store size, derived facts included. Zero
	// disables the cap. A breach fails the propagation that caused it.
	FactLimit int
	// MaxRounds caps the fixpoint loop. Zero disables the cap.
	MaxRounds int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit: 100000,
		MaxRounds: 64,
	}
}

// Engine evaluates one analyzed program over an in-memory fact store. Rules
// are grouped by head predicate; the group is the constraint the profiler
// sees, the clauses inside it are its rules.
//
// The Engine drives its sink from a single goroutine, matching the sink's
// sequential call protocol. It is not safe for concurrent use.
type Engine struct {
	cfg   Config
	runID string

	program *analysis.ProgramInfo
	store   factstore.FactStore
	groups  []*constraintGroup

	rec  *profiler.Recorder // nil when profiling is off
	sink profiler.Sink      // rec plus any extra sinks, nil when profiling is off
}

// constraintGroup is one IDB predicate with its clauses in program order.
// rules holds the profiler-wrapped form, populated during the constraint's
// propagation phase.
type constraintGroup struct {
	id      string
	clauses []ast.Clause
	rules   []profiler.Rule
}

// New parses and analyzes a Mangle program and seeds the store with its
// ground facts. rec may be nil, which disables profiling entirely. extraSinks
// receive the same event stream as rec; a trace writer is the usual passenger.
func New(src string, cfg Config, rec *profiler.Recorder, extraSinks ...profiler.Sink) (*Engine, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(src)))
	if err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}

	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, fact := range info.InitialFacts {
		store.Add(fact)
	}

	sinks := make([]profiler.Sink, 0, len(extraSinks)+1)
	if rec != nil {
		sinks = append(sinks, rec)
	}
	for _, s := range extraSinks {
		if !isNilSink(s) {
			sinks = append(sinks, s)
		}
	}

	e := &Engine{
		cfg:     cfg,
		runID:   uuid.NewString(),
		program: info,
		store:   store,
		rec:     rec,
		sink:    profiler.MultiSink(sinks...),
	}
	e.groupRules()

	logging.EngineDebug("run %s: %d ground facts, %d constraints, %d rules",
		e.runID, store.EstimateFactCount(), len(e.groups), len(info.Rules))
	return e, nil
}

// NewFromFile reads a .mg program from disk.
func NewFromFile(path string, cfg Config, rec *profiler.Recorder, extraSinks ...profiler.Sink) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program %s: %w", path, err)
	}
	return New(string(data), cfg, rec, extraSinks...)
}

// isNilSink guards against typed nil sink implementations.
func isNilSink(s profiler.Sink) bool {
	if s == nil {
		return true
	}
	val := reflect.ValueOf(s)
	return val.Kind() == reflect.Ptr && val.IsNil()
}

// groupRules collects the program's clauses by head predicate, in first
// appearance order. Premise-less clauses are facts, not rules, and belong to
// no constraint.
func (e *Engine) groupRules() {
	index := make(map[string]*constraintGroup)
	for _, clause := range e.program.Rules {
		if len(clause.Premises) == 0 {
			continue
		}
		id := predicateID(clause.Head.Predicate)
		group, ok := index[id]
		if !ok {
			group = &constraintGroup{id: id}
			index[id] = group
			e.groups = append(e.groups, group)
		}
		group.clauses = append(group.clauses, clause)
	}
}

func predicateID(sym ast.PredicateSym) string {
	return fmt.Sprintf("%s/%d", sym.Symbol, sym.Arity)
}

// RunID returns the identifier minted for this engine instance.
func (e *Engine) RunID() string { return e.runID }

// Profiling reports whether the engine records profiling data.
func (e *Engine) Profiling() bool { return e.rec != nil }

// ConstraintIDs returns the constraint identities in program order.
func (e *Engine) ConstraintIDs() []string {
	ids := make([]string, len(e.groups))
	for i, group := range e.groups {
		ids[i] = group.id
	}
	return ids
}

// Propagate runs the network to fixpoint. Each constraint first gets a
// propagation phase that registers its rules and evaluates them once; the
// fixpoint loop then refires every rule until a full round adds no facts or
// the round limit trips. The first propagation failure aborts the run.
func (e *Engine) Propagate(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryEngine, "propagate")
	defer timer.Stop()

	for _, group := range e.groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.initialPropagation(group); err != nil {
			return err
		}
	}

	return e.fixpoint(ctx)
}

// initialPropagation brackets one constraint's setup-plus-first-pass phase.
// Rule registration has to happen here: the sink binds each rule to whichever
// constraint is active when it is registered.
func (e *Engine) initialPropagation(group *constraintGroup) error {
	if e.sink != nil {
		e.sink.BeginConstraintPropagation(group.id)
	}

	group.rules = group.rules[:0]
	for i, clause := range group.clauses {
		rule := &clauseRule{
			id:     fmt.Sprintf("%s#%d", group.id, i),
			engine: e,
			clause: clause,
		}
		group.rules = append(group.rules, profiler.Profile(e.sink, rule))
	}

	if err := e.evalClauses(group.clauses); err != nil {
		if e.sink != nil {
			e.sink.SignalFailure()
		}
		logging.EngineError("constraint %s: initial propagation failed: %v", group.id, err)
		return fmt.Errorf("constraint %s: %w", group.id, err)
	}

	if e.sink != nil {
		e.sink.EndConstraintPropagation(group.id)
	}
	logging.EngineDebug("constraint %s: initial propagation done, %d rules registered", group.id, len(group.rules))
	return nil
}

// fixpoint refires every rule until a full round leaves the store unchanged.
// A rule that fails has already been attributed by its wrapper; the engine
// only aborts.
func (e *Engine) fixpoint(ctx context.Context) error {
	for round := 1; ; round++ {
		if e.cfg.MaxRounds > 0 && round > e.cfg.MaxRounds {
			logging.EngineWarn("run %s: no fixpoint after %d rounds", e.runID, e.cfg.MaxRounds)
			return fmt.Errorf("no fixpoint after %d rounds", e.cfg.MaxRounds)
		}

		before := e.store.EstimateFactCount()
		for _, group := range e.groups {
			for _, rule := range group.rules {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := rule.Run(ctx); err != nil {
					logging.EngineError("rule %s: %v", rule.ID(), err)
					return fmt.Errorf("rule %s: %w", rule.ID(), err)
				}
			}
		}
		after := e.store.EstimateFactCount()

		logging.EngineDebug("run %s round %d: %d -> %d facts", e.runID, round, before, after)
		if after == before {
			return nil
		}
	}
}

// evalClauses runs the evaluator over a subset of the program's rules via a
// rules-swapped copy of the program info. The store is shared, so each call
// sees facts derived by earlier ones. Initial facts are already in the store
// and are not re-evaluated.
func (e *Engine) evalClauses(clauses []ast.Clause) error {
	info := *e.program
	info.Rules = clauses
	info.InitialFacts = nil

	if _, err := mengine.EvalProgramWithStats(&info, e.store); err != nil {
		return err
	}
	if n := e.store.EstimateFactCount(); e.cfg.FactLimit > 0 && n > e.cfg.FactLimit {
		return fmt.Errorf("fact limit exceeded: %d facts, limit %d", n, e.cfg.FactLimit)
	}
	return nil
}

// clauseRule dispatches a single clause as one propagation rule.
type clauseRule struct {
	id     string
	engine *Engine
	clause ast.Clause
}

func (r *clauseRule) ID() string { return r.id }

func (r *clauseRule) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.engine.evalClauses([]ast.Clause{r.clause})
}

// FactCount reports the store size, derived facts included.
func (e *Engine) FactCount() int {
	return e.store.EstimateFactCount()
}

// PredicateCounts returns per-predicate fact counts keyed by name/arity.
func (e *Engine) PredicateCounts() map[string]int {
	counts := make(map[string]int)
	for _, sym := range e.store.ListPredicates() {
		n := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			n++
			return nil
		})
		counts[predicateID(sym)] = n
	}
	return counts
}

// ErrProfilingOff is returned by the report surface when the engine ran
// without a recorder.
var ErrProfilingOff = errors.New("profiling is off, no overview to export")

// RenderReport writes the run's profiling overview. Refused when the engine
// was built without profiling.
func (e *Engine) RenderReport(w io.Writer) error {
	if e.rec == nil {
		return ErrProfilingOff
	}
	return e.rec.RenderReport(w)
}

// ExportReport writes the profiling overview to a file. Refused when the
// engine was built without profiling; an unwritable path is logged and
// returned by the recorder, never fatal.
func (e *Engine) ExportReport(path string) error {
	if e.rec == nil {
		return ErrProfilingOff
	}
	return e.rec.WriteReportFile(path)
}

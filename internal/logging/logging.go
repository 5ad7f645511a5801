// Package logging provides category-scoped loggers for propprof over a
// single shared zap core. Before Init the core is a no-op, so library code
// may log unconditionally; the CLI decides whether anything is emitted.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryProfiler Category = "profiler" // Recorder, report rendering
	CategoryEngine   Category = "engine"   // Datalog host engine
	CategoryTrace    Category = "trace"    // Trace writer, replayer, watcher
	CategoryCLI      Category = "cli"      // Command plumbing
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Init builds the shared core. Logs go to stderr so report output on stdout
// stays clean. Unknown level strings fall back to info; verbose forces debug.
func Init(level string, verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// Get returns (or creates) the sugared logger named for the category.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	l := root.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes the shared core. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Profiler logs to the profiler category
func Profiler(format string, args ...interface{}) {
	Get(CategoryProfiler).Infof(format, args...)
}

// ProfilerDebug logs debug to the profiler category
func ProfilerDebug(format string, args ...interface{}) {
	Get(CategoryProfiler).Debugf(format, args...)
}

// ProfilerWarn logs warning to the profiler category
func ProfilerWarn(format string, args ...interface{}) {
	Get(CategoryProfiler).Warnf(format, args...)
}

// Engine logs to the engine category
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Infof(format, args...)
}

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debugf(format, args...)
}

// EngineWarn logs warning to the engine category
func EngineWarn(format string, args ...interface{}) {
	Get(CategoryEngine).Warnf(format, args...)
}

// EngineError logs error to the engine category
func EngineError(format string, args ...interface{}) {
	Get(CategoryEngine).Errorf(format, args...)
}

// Trace logs to the trace category
func Trace(format string, args ...interface{}) {
	Get(CategoryTrace).Infof(format, args...)
}

// TraceDebug logs debug to the trace category
func TraceDebug(format string, args ...interface{}) {
	Get(CategoryTrace).Debugf(format, args...)
}

// TraceWarn logs warning to the trace category
func TraceWarn(format string, args ...interface{}) {
	Get(CategoryTrace).Warnf(format, args...)
}

// TraceError logs error to the trace category
func TraceError(format string, args ...interface{}) {
	Get(CategoryTrace).Errorf(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnf("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

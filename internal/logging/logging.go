// Package logging is dbcut's minimal leveled stderr writer: the teacher
// pulls in no logging library of its own (plain log.Fatalf calls
// throughout main.go), so the orchestrator and CLI carry that same
// stdlib-only idiom forward rather than reaching for zerolog/zap/etc.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level is a logging threshold, lowest to highest verbosity.
type Level int

const (
	LevelQuiet Level = iota
	LevelInfo
	LevelVerbose
	LevelDebug
)

// LevelFromFlags resolves the effective Level from the CLI's mutually
// exclusive --quiet/--verbose/--debug flags. --debug wins over --verbose,
// which wins over --quiet.
func LevelFromFlags(quiet, verbose, debug bool) Level {
	switch {
	case debug:
		return LevelDebug
	case verbose:
		return LevelVerbose
	case quiet:
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger writes leveled lines to an io.Writer, defaulting to os.Stderr.
type Logger struct {
	out   io.Writer
	level Level
}

// New returns a Logger writing to os.Stderr at level.
func New(level Level) *Logger {
	return &Logger{out: os.Stderr, level: level}
}

// Infof logs at LevelInfo, dbcut's normal run-progress line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logAt(LevelInfo, format, args...)
}

// Verbosef logs at LevelVerbose, shown under --verbose or --debug.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	l.logAt(LevelVerbose, format, args...)
}

// Debugf logs at LevelDebug, shown only under --debug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logAt(LevelDebug, format, args...)
}

// Warnf always logs, even at LevelQuiet — CacheCorruption and other
// recoverable-but-notable conditions surface here.
func (l *Logger) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "warn: "+format+"\n", args...)
}

// Errorf is the single-line diagnostic printed for a terminal error:
// message, error kind, plan index and root table.
func (l *Logger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "error: "+format+"\n", args...)
}

func (l *Logger) logAt(at Level, format string, args ...interface{}) {
	if l.level < at {
		return
	}
	fmt.Fprintf(l.out, format+"\n", args...)
}

// Timed runs fn and, at LevelDebug, logs label's wall-clock duration.
// The orchestrator wraps each plan's whole extraction and each plan's
// whole load in it; single SELECTs and INSERT chunks are not timed
// separately.
func (l *Logger) Timed(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	if l.level >= LevelDebug {
		l.Debugf("%s took %s", label, time.Since(start))
	}
	return err
}

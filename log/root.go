// Package log provides the structured, leveled logger used throughout the
// asmcse module. It mirrors the small log15-style facade go-ethereum built
// on top of slog: a package-level Logger that can be swapped wholesale
// (SetDefault) plus free functions (Warn, Info, ...) that forward to it.
package log

import (
	"context"
	"os"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// LevelTrace sits below slog's Debug level so call sites can ask for
// finer-grained tracing than the standard levels provide.
const LevelTrace = slog.Level(-8)

// LevelCrit sits above Error; Crit additionally terminates the process.
const LevelCrit = slog.Level(12)

// Logger is the interface satisfied by the package root logger. Tests and
// embedders may install their own implementation via SetDefault.
type Logger interface {
	Write(level slog.Level, msg string, ctx ...interface{})
}

type slogLogger struct {
	inner *slog.Logger
}

func (l *slogLogger) Write(level slog.Level, msg string, ctx ...interface{}) {
	l.inner.Log(context.Background(), level, msg, ctx...)
}

// New returns a Logger that writes text-formatted records to w at minLevel
// and above.
func New(w *os.File, minLevel slog.Level) Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: minLevel})
	return &slogLogger{inner: slog.New(handler)}
}

var root atomic.Value

func init() {
	root.Store(New(os.Stderr, LevelTrace))
}

// Root returns the current package-wide logger.
func Root() Logger {
	return root.Load().(Logger)
}

// SetDefault installs l as the package-wide logger.
func SetDefault(l Logger) {
	root.Store(l)
}

func Trace(msg string, ctx ...interface{}) { Root().Write(LevelTrace, msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Write(slog.LevelDebug, msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Write(slog.LevelInfo, msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Write(slog.LevelWarn, msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Write(slog.LevelError, msg, ctx...) }

// Crit logs at the highest level and then terminates the process, matching
// go-ethereum's convention that Crit means "cannot continue".
func Crit(msg string, ctx ...interface{}) {
	Root().Write(LevelCrit, msg, ctx...)
	os.Exit(1)
}

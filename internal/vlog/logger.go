// Package vlog defines the small logging and tracing interface every
// vddb component takes instead of reaching for the standard library
// logger directly, so a caller can plug in their own structured
// logger without vddb depending on one concretely.
package vlog

import (
	"context"
	"log"
	"os"

	"github.com/cockroachdb/redact"
)

// Logger is the minimal logging and tracing surface vddb components
// depend on. IsTracingEnabled lets a caller skip building an event
// string (and its allocations) when nothing would consume it.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Eventf(ctx context.Context, format string, args ...interface{})
	IsTracingEnabled(ctx context.Context) bool
}

// stdLogger is the default Logger, backed by the standard library's
// log.Logger and never tracing.
type stdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger that writes redaction-marked messages
// to stderr and never traces.
func NewStdLogger() Logger {
	return &stdLogger{Logger: log.New(os.Stderr, "vddb: ", log.LstdFlags)}
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.Printf(format, safeArgs(args)...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.Printf("error: "+format, safeArgs(args)...)
}

func (l *stdLogger) Eventf(_ context.Context, format string, args ...interface{}) {
	l.Printf("event: "+format, safeArgs(args)...)
}

// safeArgs marks every argument as not requiring redaction, mirroring
// how errors.Safe is used at error-construction sites: vddb's own
// identifiers (table names, column names, offsets) never carry
// user secrets.
func safeArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = redact.Safe(a)
	}
	return out
}

func (l *stdLogger) IsTracingEnabled(context.Context) bool { return false }

// noopLogger discards everything; useful in tests that don't want log
// noise but still need to satisfy the Logger parameter.
type noopLogger struct{}

// NewNoopLogger returns a Logger that discards every call.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Infof(string, ...interface{}) {}
func (noopLogger) Errorf(string, ...interface{}) {}
func (noopLogger) Eventf(context.Context, string, ...interface{}) {}
func (noopLogger) IsTracingEnabled(context.Context) bool { return false }

package dlog

import (
	"fmt"
	"os"
	"sync"
)

// Logger pairs the in-memory/on-disk ring with the component-tagged,
// env-gated Printf/Log style the rest of the daemon calls into. Debug
// output additionally always feeds the ring regardless of the
// PROBE_DEBUG gate, since TailLogs must work even when stderr tracing
// is off.
type Logger struct {
	mu      sync.Mutex
	ring    *Ring
	verbose bool
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// New creates a Logger backed by ring. verbose mirrors the teacher's
// EnableDebug/DEBUG env convention, renamed to this project's prefix.
func New(ring *Ring) *Logger {
	return &Logger{ring: ring, verbose: isVerboseEnabled()}
}

func isVerboseEnabled() bool {
	v := os.Getenv("PROBE_DEBUG")
	return v == "1" || v == "true"
}

// SetDefault installs l as the package-level logger used by Log/Printf.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func getDefault() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger
}

// Log records a component-tagged message into the ring, and additionally
// writes it to stderr when verbose tracing is enabled.
func (l *Logger) Log(level, component, format string, args ...interface{}) Entry {
	msg := fmt.Sprintf("[%s] "+format, append([]interface{}{component}, args...)...)

	l.mu.Lock()
	verbose := l.verbose
	l.mu.Unlock()

	e := l.ring.Push(level, msg)
	if verbose {
		fmt.Fprintln(os.Stderr, msg)
	}
	return e
}

func (l *Logger) Info(component, format string, args ...interface{}) Entry {
	return l.Log("info", component, format, args...)
}
func (l *Logger) Warn(component, format string, args ...interface{}) Entry {
	return l.Log("warn", component, format, args...)
}
func (l *Logger) Error(component, format string, args ...interface{}) Entry {
	return l.Log("error", component, format, args...)
}

// Daemon/LSP/Cache are convenience wrappers mirroring the component
// names the pool, client, and cache layers log under.
func (l *Logger) Daemon(format string, args ...interface{}) { l.Info("DAEMON", format, args...) }
func (l *Logger) LSP(format string, args ...interface{})    { l.Info("LSP", format, args...) }
func (l *Logger) Cache(format string, args ...interface{})  { l.Info("CACHE", format, args...) }

// Package-level helpers delegate to the installed default logger, or are
// no-ops if none has been installed (e.g. in CLI-only, non-daemon runs).
func Info(component, format string, args ...interface{}) {
	if l := getDefault(); l != nil {
		l.Info(component, format, args...)
	}
}

func Warn(component, format string, args ...interface{}) {
	if l := getDefault(); l != nil {
		l.Warn(component, format, args...)
	}
}

func Error(component, format string, args ...interface{}) {
	if l := getDefault(); l != nil {
		l.Error(component, format, args...)
	}
}

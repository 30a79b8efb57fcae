package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/arloliu/slotindex/types"
)

// Level names used by RecordingLogger entries.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// NewTestLogger creates a logger that writes to the test log.
func NewTestLogger(t testing.TB) types.Logger {
	return &testLogger{t: t}
}

type testLogger struct {
	t testing.TB
}

var _ types.Logger = (*testLogger)(nil)

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.t.Logf("DEBUG: %s %v", msg, keysAndValues)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.t.Logf("INFO: %s %v", msg, keysAndValues)
}

func (l *testLogger) Warn(msg string, keysAndValues ...any) {
	l.t.Logf("WARN: %s %v", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.t.Logf("ERROR: %s %v", msg, keysAndValues)
}

func (l *testLogger) Fatal(msg string, keysAndValues ...any) {
	l.t.Fatalf("FATAL: %s %v", msg, keysAndValues)
}

// Entry is one message captured by a RecordingLogger.
type Entry struct {
	Level         string
	Message       string
	KeysAndValues []any
}

// Value returns the value logged for key, if any.
func (e Entry) Value(key string) (any, bool) {
	for i := 0; i+1 < len(e.KeysAndValues); i += 2 {
		if k, ok := e.KeysAndValues[i].(string); ok && k == key {
			return e.KeysAndValues[i+1], true
		}
	}

	return nil, false
}

// RecordingLogger keeps every entry in memory and mirrors it to the test log.
//
// It is safe for concurrent use.
type RecordingLogger struct {
	t       testing.TB
	mu      sync.Mutex
	entries []Entry
}

var _ types.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates a RecordingLogger bound to t.
func NewRecordingLogger(t testing.TB) *RecordingLogger {
	return &RecordingLogger{t: t}
}

// Entries returns the captured entries at level, or all entries when level is empty.
func (l *RecordingLogger) Entries(level string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}

	return out
}

// Reset drops every captured entry.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *RecordingLogger) record(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, KeysAndValues: keysAndValues})
	l.mu.Unlock()

	l.t.Logf("%s: %s %v", level, msg, keysAndValues)
}

func (l *RecordingLogger) Debug(msg string, keysAndValues ...any) {
	l.record(LevelDebug, msg, keysAndValues)
}

func (l *RecordingLogger) Info(msg string, keysAndValues ...any) {
	l.record(LevelInfo, msg, keysAndValues)
}

func (l *RecordingLogger) Warn(msg string, keysAndValues ...any) {
	l.record(LevelWarn, msg, keysAndValues)
}

func (l *RecordingLogger) Error(msg string, keysAndValues ...any) {
	l.record(LevelError, msg, keysAndValues)
}

// Fatal records the entry and fails the test; it never exits the process.
func (l *RecordingLogger) Fatal(msg string, keysAndValues ...any) {
	l.record(LevelFatal, msg, keysAndValues)
	l.t.Fatal(fmt.Sprintf("FATAL: %s %v", msg, keysAndValues))
}

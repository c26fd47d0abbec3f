// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// RecordingLogger captures log records so tests can assert on forwarded
// messages. Safe for use from the goroutines a test spawns.
type RecordingLogger struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewRecordingLogger returns a logger backed by a RecordingLogger handler.
func NewRecordingLogger() (*slog.Logger, *RecordingLogger) {
	rec := &RecordingLogger{}
	return slog.New(rec), rec
}

func (r *RecordingLogger) Enabled(context.Context, slog.Level) bool { return true }

func (r *RecordingLogger) Handle(_ context.Context, record slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *RecordingLogger) WithAttrs([]slog.Attr) slog.Handler { return r }

func (r *RecordingLogger) WithGroup(string) slog.Handler { return r }

// Messages returns the captured log messages in order.
func (r *RecordingLogger) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.records))
	for i, rec := range r.records {
		msgs[i] = rec.Message
	}
	return msgs
}

// Contains reports whether any captured message contains substr.
func (r *RecordingLogger) Contains(substr string) bool {
	for _, m := range r.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

package testutil

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line, with handler-level attributes merged
// into the per-call ones.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// logBuffer is the record store shared by a handler and every child handler
// derived from it via WithAttrs/WithGroup, so a logger.With(...) chain still
// lands in the same buffer.
type logBuffer struct {
	mu      sync.Mutex
	records []LogRecord
	t       *testing.T
}

// BufferedSlogHandler is a slog.Handler that records everything it is given.
// All levels are captured regardless of the logger's configured level.
type BufferedSlogHandler struct {
	buf    *logBuffer
	attrs  []slog.Attr
	prefix string // group path, dot-joined
}

// NewBufferedSlogHandler creates a capturing handler. The testing.T is
// optional; when set, records are echoed through t.Logf.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{buf: &logBuffer{t: t}}
}

// NewTestLogger returns a logger wired to a fresh capturing handler.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

func (h *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.buf.mu.Lock()
	h.buf.records = append(h.buf.records, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	t := h.buf.t
	h.buf.mu.Unlock()

	if t != nil {
		t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &child
}

func (h *BufferedSlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.key(name)
	return &child
}

func (h *BufferedSlogHandler) key(name string) string {
	if h.prefix == "" {
		return name
	}
	return h.prefix + "." + name
}

// GetRecords returns a copy of every captured record.
func (h *BufferedSlogHandler) GetRecords() []LogRecord {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	out := make([]LogRecord, len(h.buf.records))
	copy(out, h.buf.records)
	return out
}

// GetRecordsByLevel returns the captured records at exactly the given level.
func (h *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	var out []LogRecord
	for _, r := range h.buf.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// ContainsMessage reports whether any record's message contains the substring.
func (h *BufferedSlogHandler) ContainsMessage(message string) bool {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	for _, r := range h.buf.records {
		if strings.Contains(r.Message, message) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any record carries the attribute with the
// given value.
func (h *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	for _, r := range h.buf.records {
		if v, ok := r.Attrs[key]; ok && reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}

// Count returns how many records have been captured.
func (h *BufferedSlogHandler) Count() int {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	return len(h.buf.records)
}

// Clear drops every captured record.
func (h *BufferedSlogHandler) Clear() {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	h.buf.records = h.buf.records[:0]
}

// AssertLogContains fails the test unless a record at the given level
// contains the message substring.
func AssertLogContains(t *testing.T, handler *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()
	for _, r := range handler.GetRecordsByLevel(level) {
		if strings.Contains(r.Message, message) {
			return
		}
	}
	t.Errorf("no %s log containing %q; captured:", level, message)
	for _, r := range handler.GetRecordsByLevel(level) {
		t.Logf("  - %s", r.Message)
	}
}

// AssertLogAttr fails the test unless some record carries the attribute.
func AssertLogAttr(t *testing.T, handler *BufferedSlogHandler, key string, want any) {
	t.Helper()
	if handler.ContainsAttr(key, want) {
		return
	}
	t.Errorf("no log with attribute %s=%v; captured:", key, want)
	for _, r := range handler.GetRecords() {
		t.Logf("  - %s: %v", r.Message, r.Attrs)
	}
}

// AssertNoErrors fails the test if any error-level record was captured.
func AssertNoErrors(t *testing.T, handler *BufferedSlogHandler) {
	t.Helper()
	errs := handler.GetRecordsByLevel(slog.LevelError)
	if len(errs) == 0 {
		return
	}
	t.Errorf("unexpected error logs:")
	for _, r := range errs {
		t.Errorf("  - %s: %v", r.Message, r.Attrs)
	}
}

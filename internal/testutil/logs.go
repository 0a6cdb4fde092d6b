package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LogRecord is one captured log call with its attributes flattened to
// strings.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// String renders the record like a text handler line without the time.
func (r LogRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "level=%s msg=%q", r.Level, r.Message)
	for k, v := range r.Attrs {
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

// LogCapture is a slog.Handler that keeps every record in memory.
//
// Thread-safety: safe for concurrent use; handlers derived with WithAttrs
// and WithGroup share the parent's storage.
type LogCapture struct {
	sink  *logSink
	attrs []slog.Attr // keys already qualified by their group
	group string
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewLogCapture returns a logger writing into a new capture, at every
// level.
func NewLogCapture() (*slog.Logger, *LogCapture) {
	h := &LogCapture{sink: &logSink{}}
	return slog.New(h), h
}

// Enabled implements slog.Handler.
func (h *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (h *LogCapture) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: map[string]string{}}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Resolve().String()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[h.key(a.Key)] = a.Value.Resolve().String()
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, rec)
	h.sink.mu.Unlock()
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *LogCapture) WithGroup(name string) slog.Handler {
	next := *h
	next.group = h.key(name)
	return &next
}

func (h *LogCapture) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// Records returns a copy of every captured record.
func (h *LogCapture) Records() []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return append([]LogRecord(nil), h.sink.records...)
}

// WithMessage returns the records whose message is msg.
func (h *LogCapture) WithMessage(msg string) []LogRecord {
	var out []LogRecord
	for _, r := range h.Records() {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

// Contains reports whether any record's message or attribute value
// contains s.
func (h *LogCapture) Contains(s string) bool {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, s) {
			return true
		}
		for _, v := range r.Attrs {
			if strings.Contains(v, s) {
				return true
			}
		}
	}
	return false
}

// Reset drops every captured record.
func (h *LogCapture) Reset() {
	h.sink.mu.Lock()
	h.sink.records = nil
	h.sink.mu.Unlock()
}

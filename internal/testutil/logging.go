package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecorder is a slog.Handler that keeps every record it handles.
type LogRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewLogger returns a logger writing to a fresh LogRecorder.
func NewLogger() (*slog.Logger, *LogRecorder) {
	r := &LogRecorder{}
	return slog.New(r), r
}

func (h *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *LogRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *LogRecorder) WithGroup(string) slog.Handler { return h }

// Messages returns the message of every record at or above level.
func (h *LogRecorder) Messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var msgs []string
	for _, r := range h.records {
		if r.Level >= level {
			msgs = append(msgs, r.Message)
		}
	}
	return msgs
}

// Contains reports whether a record with msg was logged at level.
func (h *LogRecorder) Contains(level slog.Level, msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			return true
		}
	}
	return false
}

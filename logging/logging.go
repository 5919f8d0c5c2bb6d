// Package logging builds the process logger from LOG_LEVEL and LOG_FORMAT.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/trussworks/ephemeral-env/errors"
)

// Formats accepted by New. "simple" is an alias of "text".
const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatSimple = "simple"
)

// ParseLevel parses debug, info, warn or error. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Newf(errors.CodeInvalidConfig, "unknown log level %q", s)
	}
}

// New returns a logger writing to w. format is json (the default), text or
// simple.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText, FormatSimple:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown log format %q", format)
	}
}

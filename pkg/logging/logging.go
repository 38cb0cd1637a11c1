// Package logging builds the slog loggers used by every Empacy component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"empacy/pkg/protocol"
)

// Options configures New.
type Options struct {
	Level  string    // debug | info | warn | error (default info)
	Format string    // text | json (default text)
	File   string    // optional extra sink, appended to
	Out    io.Writer // primary sink (default os.Stderr)
}

// ParseLevel maps a level name to a slog.Level. Unknown names are an error.
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
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger tagged with service=empacy. The returned close func
// releases the file sink, if any, and is always safe to call.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closeFn = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		h = slog.NewTextHandler(out, handlerOpts)
	case "json":
		h = slog.NewJSONHandler(out, handlerOpts)
	default:
		_ = closeFn()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return slog.New(h).With("service", protocol.ServiceName), closeFn, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component scopes logger to a named component, substituting a discard logger
// for nil.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", name)
}

// Package logging builds the process-wide slog.Logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options selects the handler. Out defaults to os.Stderr.
type Options struct {
	Level  string
	Format string
	Dir    string
	Out    io.Writer
	Now    func() time.Time
}

// New returns a logger and a close function that releases the daily log file,
// if one was opened. When Dir is set, records are written to both Out and
// Dir/rssdigest-YYYY-MM-DD.log.
func New(opts Options) (*slog.Logger, func() error, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	closeFn := func() error { return nil }

	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %q: %w", opts.Dir, err)
		}
		path := FilePath(opts.Dir, now())
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %q: %w", path, err)
		}
		out = io.MultiWriter(out, f)
		closeFn = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler), closeFn, nil
}

// FilePath is the daily log file for day t.
func FilePath(dir string, t time.Time) string {
	return filepath.Join(dir, "rssdigest-"+t.Format("2006-01-02")+".log")
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package logger holds the process-wide slog logger and thin helpers around
// it, so packages log without passing a logger around.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger is the process-wide logger. Setup replaces it.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Options selects where and how Setup logs.
type Options struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string
	// Path is the log file. Empty means stderr.
	Path string
	// Format is text or json. Anything else means text.
	Format string
}

// Setup replaces Logger according to opts. The returned closer releases the
// log file and must be closed on exit; for stderr it is a no-op.
func Setup(opts Options) (io.Closer, error) {
	var out io.Writer = os.Stderr
	closer := io.NopCloser(nil)

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	Logger = slog.New(newHandler(out, opts.Format, ParseLevel(opts.Level)))
	return closer, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	ho := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

package suffixmerge

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with suffixmerge-specific helpers so that every
// command reports progress with the same field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithPartition tags log lines with the merge partition they came from.
func (l *Logger) WithPartition(part int) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", part),
	}
}

// LogTableWritten logs the completion of a table file.
func (l *Logger) LogTableWritten(ctx context.Context, path string, entries int64, width int, elapsed time.Duration) {
	l.InfoContext(ctx, "table written",
		"table", path,
		"entries", entries,
		"width", width,
		"elapsed", elapsed,
	)
}

// LogPartition logs the ranges a merge worker is about to consume.
func (l *Logger) LogPartition(ctx context.Context, p Partition) {
	starts := make([]int64, len(p.Ranges))
	ends := make([]int64, len(p.Ranges))
	for i, r := range p.Ranges {
		starts[i], ends[i] = r.Start, r.End
	}
	l.DebugContext(ctx, "partition planned",
		"partition", p.Index,
		"starts", starts,
		"ends", ends,
	)
}

// LogLongMatch warns that the corpus contains a repeat long enough to make
// the merge degrade toward quadratic time.
func (l *Logger) LogLongMatch(ctx context.Context, length int, bounded bool) {
	if bounded {
		l.WarnContext(ctx, "long repeated sequence found; merge may run in quadratic time",
			"match_len", length,
		)
		return
	}
	l.WarnContext(ctx, "repeated sequence longer than probe limit; merge is running in quadratic time",
		"probe_limit", length,
	)
}

// LogMergeDone logs a finished merge worker.
func (l *Logger) LogMergeDone(ctx context.Context, part int, emitted int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge worker failed",
			"partition", part,
			"emitted", emitted,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "merge worker done",
		"partition", part,
		"emitted", emitted,
	)
}

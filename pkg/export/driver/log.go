package driver

import "context"

// Logger receives the adapter's debug events. Both *slog.Logger and the
// project's logging.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
}

type loggerKey struct{}

// WithLogger returns a context whose connections and cursors log to l. The
// pipeline uses it to attach the run's logger, so driver lines carry the run
// ID and job.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context, fallback Logger) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
		return l
	}
	return fallback
}

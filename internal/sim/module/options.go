package module

import "log/slog"

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger for the Runner.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Runner. Plugin messages are
// forwarded to the same handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

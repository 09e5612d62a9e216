package registry

import "log/slog"

type Option func(*Registry)

// WithLogHandler sets a custom log handler for the Registry.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Registry) {
		r.logger = slog.New(handler)
	}
}

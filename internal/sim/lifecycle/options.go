package lifecycle

import "log/slog"

type Option func(*Machine)

// WithLogger sets a custom logger for the Machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Machine.
func WithLogHandler(handler slog.Handler) Option {
	return func(m *Machine) {
		m.logger = slog.New(handler)
	}
}

package store

import "log/slog"

type Option func(*Store)

// WithLogger sets a custom logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Store.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Store) {
		s.logger = slog.New(handler)
	}
}

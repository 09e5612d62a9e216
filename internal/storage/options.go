package storage

import "log/slog"

type Option func(*Store)

// WithLogger sets a custom logger for the Store instance.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Store instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Store) {
		s.logger = slog.New(handler).WithGroup("storage.Store")
	}
}

// WithXLSX also writes series.xlsx next to series.csv.
func WithXLSX() Option {
	return func(s *Store) {
		s.xlsx = true
	}
}

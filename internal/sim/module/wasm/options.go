package wasm

import "log/slog"

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a custom logger for the Loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Loader.
func WithLogHandler(handler slog.Handler) Option {
	return func(l *Loader) {
		l.logger = slog.New(handler)
	}
}

// WithMemoryLimitPages caps the linear memory of every plugin, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(l *Loader) {
		l.memoryLimitPages = pages
	}
}

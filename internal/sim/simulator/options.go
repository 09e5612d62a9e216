package simulator

import (
	"context"
	"log/slog"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets a custom logger for the Simulator.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Simulator and its runners.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Simulator) {
		s.logger = slog.New(handler)
	}
}

// WithContext sets the parent context of the worker.
func WithContext(ctx context.Context) Option {
	return func(s *Simulator) {
		s.parentCtx = ctx
	}
}

// WithSettings sets the initial run settings.
func WithSettings(settings Settings) Option {
	return func(s *Simulator) {
		s.settings = settings
	}
}

// WithBatchSize sets how many offline steps run between request checks.
func WithBatchSize(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithShutdownOnComplete makes the shutdown trigger fire once an offline run
// has finished and returned to Idle.
func WithShutdownOnComplete() Option {
	return func(s *Simulator) {
		s.shutdownOnComplete = true
	}
}

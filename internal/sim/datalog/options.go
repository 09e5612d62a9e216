package datalog

import (
	"log/slog"

	"github.com/atlanticdynamic/simkernel/internal/sim/timeseries"
)

type Option func(*Logger)

// WithDepth sets the initial series depth.
func WithDepth(depth int) Option {
	return func(l *Logger) {
		l.depth = timeseries.ClampDepth(depth)
	}
}

// WithStep sets the initial time step used to prefill the time axis.
func WithStep(step float64) Option {
	return func(l *Logger) {
		if step > 0 {
			l.step = step
		}
	}
}

// WithMaxSamples bounds the total number of samples held by the time axis and
// all series. Zero means unbounded.
func WithMaxSamples(n int) Option {
	return func(l *Logger) {
		l.maxSamples = n
	}
}

// WithLogger sets a custom logger for the Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Logger.
func WithLogHandler(handler slog.Handler) Option {
	return func(l *Logger) {
		l.logger = slog.New(handler)
	}
}

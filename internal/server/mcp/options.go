package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atlanticdynamic/simkernel/internal/storage"
)

type Option func(*Runner)

// WithLogger sets a custom logger for the Runner instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Runner instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithTransport replaces the default stdio transport.
func WithTransport(t mcpsdk.Transport) Option {
	return func(r *Runner) {
		r.transport = t
	}
}

// WithStore enables the export tool.
func WithStore(s *storage.Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithImplementation sets the server name and version reported to clients.
func WithImplementation(name, version string) Option {
	return func(r *Runner) {
		r.impl = &mcpsdk.Implementation{Name: name, Version: version}
	}
}

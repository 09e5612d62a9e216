package kernel

import (
	"context"
	"log/slog"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets a custom logger for the Context.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Context) {
		k.logger = logger
	}
}

// WithLogHandler sets the log handler shared by every kernel component.
func WithLogHandler(handler slog.Handler) Option {
	return func(k *Context) {
		k.handler = handler
		k.logger = slog.New(handler)
	}
}

// WithContext sets the parent context of the simulator worker.
func WithContext(ctx context.Context) Option {
	return func(k *Context) {
		k.parentCtx = ctx
	}
}

// WithLoader replaces the default plugin loader. The default serves the
// "builtin:" scheme and ".wasm" files.
func WithLoader(loader module.Loader) Option {
	return func(k *Context) {
		k.loader = loader
	}
}

// WithMaxSamples bounds the number of samples the data logger may hold.
func WithMaxSamples(n int) Option {
	return func(k *Context) {
		k.maxSamples = n
	}
}

// WithBatchSize sets the number of offline steps between request checks.
func WithBatchSize(n int) Option {
	return func(k *Context) {
		k.batchSize = n
	}
}

// WithShutdownOnComplete makes the simulator's shutdown trigger fire once an
// offline run has completed.
func WithShutdownOnComplete() Option {
	return func(k *Context) {
		k.shutdownOnComplete = true
	}
}

// WithWasmMemoryLimitPages caps the linear memory of WebAssembly plugins.
func WithWasmMemoryLimitPages(pages uint32) Option {
	return func(k *Context) {
		k.wasmPages = pages
	}
}

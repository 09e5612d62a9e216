// Package server assembles the long-running kernel service: the simulator
// worker, the declaration file watcher and the MCP command surface, all under
// one supervisor.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/atlanticdynamic/simkernel/internal/server/mcp"
	"github.com/atlanticdynamic/simkernel/internal/server/runnables/declwatcher"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

// Options selects what the service runs. ConfigPath and RunsDir are optional.
// A nil Transport serves MCP over stdin and stdout.
type Options struct {
	ConfigPath string
	RunsDir    string
	XLSX       bool
	Version    string
	Transport  mcpsdk.Transport
}

// Run starts the kernel service and blocks until it is signalled, its context
// is done or the MCP client disconnects.
func Run(ctx context.Context, logger *slog.Logger, opts Options) error {
	logHandler := logger.Handler()

	k, err := kernel.New(ctx,
		kernel.WithContext(ctx),
		kernel.WithLogHandler(logHandler),
	)
	if err != nil {
		return fmt.Errorf("failed to create kernel: %w", err)
	}
	defer func() {
		if err := k.Close(context.Background()); err != nil {
			logger.Warn("Failed to close kernel", "error", err)
		}
	}()

	// The simulator goes first so the watcher's initial declaration and every
	// tool call find a running worker.
	runnables := []supervisor.Runnable{k.Runnable()}

	if opts.ConfigPath != "" {
		watcher, err := declwatcher.NewRunner(
			opts.ConfigPath,
			k,
			declwatcher.WithContext(ctx),
			declwatcher.WithLogHandler(logHandler),
		)
		if err != nil {
			return fmt.Errorf("failed to create declaration watcher: %w", err)
		}
		runnables = append(runnables, watcher)
	}

	mcpOpts := []mcp.Option{
		mcp.WithContext(ctx),
		mcp.WithLogHandler(logHandler),
	}
	if opts.Version != "" {
		mcpOpts = append(mcpOpts, mcp.WithImplementation("simkernel", opts.Version))
	}
	if opts.Transport != nil {
		mcpOpts = append(mcpOpts, mcp.WithTransport(opts.Transport))
	}
	if opts.RunsDir != "" {
		storeOpts := []storage.Option{storage.WithLogHandler(logHandler)}
		if opts.XLSX {
			storeOpts = append(storeOpts, storage.WithXLSX())
		}
		mcpOpts = append(mcpOpts, mcp.WithStore(storage.New(opts.RunsDir, storeOpts...)))
	}
	mcpRunner, err := mcp.NewRunner(k, mcpOpts...)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	runnables = append(runnables, mcpRunner)

	super, err := supervisor.New(
		supervisor.WithContext(ctx),
		supervisor.WithLogHandler(logHandler),
		supervisor.WithRunnables(runnables...),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}
	if err := super.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to run server: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

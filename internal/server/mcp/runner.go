// Package mcp serves the kernel's host command and query surface as Model
// Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/atlanticdynamic/simkernel/internal/server/finitestate"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
)

// Runner runs one MCP server session over its transport.
type Runner struct {
	kernel    *kernel.Context
	store     *storage.Store
	impl      *mcpsdk.Implementation
	transport mcpsdk.Transport
	server    *mcpsdk.Server

	mu        sync.Mutex
	runCancel context.CancelFunc
	parentCtx context.Context
	shutdown  chan struct{}

	logger *slog.Logger
	fsm    finitestate.Machine
}

// NewRunner builds the MCP server and registers every tool.
func NewRunner(k *kernel.Context, opts ...Option) (*Runner, error) {
	if k == nil {
		return nil, ErrNoKernel
	}

	r := &Runner{
		kernel:    k,
		impl:      &mcpsdk.Implementation{Name: "simkernel", Version: "dev"},
		transport: &mcpsdk.StdioTransport{},
		parentCtx: context.Background(),
		shutdown:  make(chan struct{}, 1),
		logger:    slog.Default().WithGroup("mcp.Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}

	fsm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = fsm

	r.server = mcpsdk.NewServer(r.impl, nil)
	r.registerTools()
	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "mcp.Runner"
}

// Server returns the MCP server, for connecting extra transports.
func (r *Runner) Server() *mcpsdk.Server {
	return r.server
}

// Run implements the supervisor.Runnable interface. It serves until ctx is
// done, Stop is called or the session ends. A session that ends on the client
// side fires the shutdown trigger.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.runCancel = cancel
	r.mu.Unlock()

	go func() {
		select {
		case <-r.parentCtx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Info("MCP server listening", "name", r.impl.Name)

	err := r.server.Run(runCtx, r.transport)
	switch {
	case runCtx.Err() == nil:
		r.logger.Info("MCP session ended", "error", err)
		select {
		case r.shutdown <- struct{}{}:
		default:
		}
	case err != nil && !errors.Is(err, context.Canceled):
		r.logger.Warn("MCP server stopped with error", "error", err)
	}

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
	}

	r.mu.Lock()
	cancel := r.runCancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GetShutdownTrigger fires when the client ends the session.
func (r *Runner) GetShutdownTrigger() <-chan struct{} {
	return r.shutdown
}

// GetState implements the supervisor.Stateable interface
func (r *Runner) GetState() string {
	return r.fsm.GetState()
}

// GetStateChan implements the supervisor.Stateable interface
func (r *Runner) GetStateChan(ctx context.Context) <-chan string {
	return r.fsm.GetStateChan(ctx)
}

// IsRunning reports whether the server is serving.
func (r *Runner) IsRunning() bool {
	return r.fsm.GetState() == finitestate.StatusRunning
}

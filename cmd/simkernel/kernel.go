package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the declaration document (TOML, YAML or JSON)",
	Sources: cli.EnvVars("SIMKERNEL_CONFIG"),
}

var runsFlag = &cli.StringFlag{
	Name:    "runs",
	Usage:   "Directory holding exported runs",
	Value:   "runs",
	Sources: cli.EnvVars("SIMKERNEL_RUNS"),
}

// declarationPath returns the --config flag or the first positional argument.
func declarationPath(cmd *cli.Command) string {
	if p := cmd.String("config"); p != "" {
		return p
	}
	return cmd.Args().First()
}

func loadDeclaration(cmd *cli.Command) (*config.Config, error) {
	path := declarationPath(cmd)
	if path == "" {
		return nil, cli.Exit(
			"declaration file path required (use the --config flag, or provide the file as positional argument)",
			1,
		)
	}
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, cli.Exit(fmt.Errorf("failed to load declaration: %w", err), 1)
	}
	return cfg, nil
}

// newKernel builds a kernel logging through handler and declares cfg into it
// when cfg is not nil.
func newKernel(
	ctx context.Context,
	cfg *config.Config,
	handler slog.Handler,
	opts ...kernel.Option,
) (*kernel.Context, error) {
	opts = append([]kernel.Option{
		kernel.WithLogHandler(handler),
		kernel.WithContext(ctx),
	}, opts...)

	k, err := kernel.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kernel: %w", err)
	}
	if cfg == nil {
		return k, nil
	}
	if err := k.Declare(ctx, cfg); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to declare document: %w", err), k.Close(ctx))
	}
	return k, nil
}

// waitRunning blocks until the simulator worker accepts requests.
func waitRunning(ctx context.Context, sim *simulator.Simulator) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for !sim.IsRunning() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sim.Done():
			return simulator.ErrNotRunning
		case <-ticker.C:
		}
	}
	return nil
}

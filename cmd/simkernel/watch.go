package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cli.Command{
	Name:      "watch",
	Usage:     "Watch and control a simulation in the terminal",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		configFlag,
		&cli.DurationFlag{
			Name:  "refresh",
			Usage: "Screen refresh interval",
			Value: 100 * time.Millisecond,
		},
		&cli.BoolFlag{
			Name:  "start",
			Usage: "Start a run as soon as the view opens",
		},
	},
	Action: watchAction,
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadDeclaration(cmd)
	if err != nil {
		return err
	}
	if err := applyDocumentLogging(cmd, cfg); err != nil {
		return err
	}

	// Log lines on the terminal would tear the view.
	handler := slog.Default().Handler()
	switch cmd.String("log-output") {
	case "stderr", "stdout", "":
		handler = slog.DiscardHandler
	}

	k, err := newKernel(ctx, cfg, handler)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() {
		if err := k.Close(context.Background()); err != nil {
			slog.Warn("Failed to close kernel", "error", err)
		}
	}()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	super, err := supervisor.New(
		supervisor.WithContext(watchCtx),
		supervisor.WithLogHandler(handler),
		supervisor.WithRunnables(k.Runnable()),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
	}

	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(super.Run)
	g.Go(func() error {
		defer cancel()
		if err := waitRunning(gctx, k.Runnable()); err != nil {
			return err
		}
		if cmd.Bool("start") {
			if err := k.Start(gctx); err != nil {
				return fmt.Errorf("failed to start run: %w", err)
			}
		}
		model := newWatchModel(gctx, k, cmd.Duration("refresh"))
		_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("watch view failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Fprintln(cmd.Root().Writer, renderStatus(k.Status()))
	return nil
}

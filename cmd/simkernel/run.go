package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/fancy"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

var runCmd = &cli.Command{
	Name:      "run",
	Usage:     "Run a simulation and export the logged series",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		configFlag,
		runsFlag,
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Override the run mode (realtime or offline)",
		},
		&cli.FloatFlag{
			Name:  "step",
			Usage: "Override the step size in seconds",
		},
		&cli.FloatFlag{
			Name:  "duration",
			Usage: "Override the duration in seconds; in real time, the wall clock run length",
		},
		&cli.BoolFlag{
			Name:  "xlsx",
			Usage: "Also export the series as an Excel workbook",
		},
		&cli.BoolFlag{
			Name:  "no-export",
			Usage: "Do not export the run",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Do not show progress",
		},
	},
	Action: runAction,
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadDeclaration(cmd)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(cmd, cfg); err != nil {
		return cli.Exit(err, 1)
	}
	if err := applyDocumentLogging(cmd, cfg); err != nil {
		return err
	}
	settings, err := cfg.Simulation.Settings()
	if err != nil {
		return cli.Exit(err, 1)
	}

	handler := slog.Default().Handler()
	var opts []kernel.Option
	if settings.Mode == simulator.Offline {
		opts = append(opts, kernel.WithShutdownOnComplete())
	}
	k, err := newKernel(ctx, cfg, handler, opts...)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() {
		if err := k.Close(context.Background()); err != nil {
			slog.Warn("Failed to close kernel", "error", err)
		}
	}()

	progress := newRunProgress(cmd.Root().ErrWriter, settings, !cmd.Bool("quiet"))
	if err := simulate(ctx, k, settings, handler, progress); err != nil {
		return cli.Exit(err, 1)
	}

	status := k.Status()
	if cmd.Bool("no-export") {
		fmt.Fprintln(cmd.Root().Writer, renderStatus(status))
		return nil
	}

	var storeOpts []storage.Option
	storeOpts = append(storeOpts, storage.WithLogHandler(handler))
	if cmd.Bool("xlsx") {
		storeOpts = append(storeOpts, storage.WithXLSX())
	}
	store := storage.New(cmd.String("runs"), storeOpts...)
	meta, err := store.Save(storage.Capture(k))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to export run: %w", err), 1)
	}
	fmt.Fprintln(cmd.Root().Writer, renderRunSaved(store.Dir(), meta))
	return nil
}

// applyRunOverrides copies the mode, step and duration flags into the
// document and validates the result.
func applyRunOverrides(cmd *cli.Command, cfg *config.Config) error {
	if cmd.IsSet("mode") {
		cfg.Simulation.Mode = strings.ToLower(cmd.String("mode"))
	}
	if cmd.IsSet("step") {
		cfg.Simulation.Step = cmd.Float("step")
	}
	if cmd.IsSet("duration") {
		cfg.Simulation.Duration = cmd.Float("duration")
	}
	return cfg.Simulation.Validate()
}

// simulate supervises the simulator worker, starts one run and waits for it to
// end. An offline run ends on completion. A real time run ends after its
// duration, if any, or when the process is signalled.
func simulate(
	ctx context.Context,
	k *kernel.Context,
	settings simulator.Settings,
	handler slog.Handler,
	progress *runProgress,
) error {
	superCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	super, err := supervisor.New(
		supervisor.WithContext(superCtx),
		supervisor.WithLogHandler(handler),
		supervisor.WithRunnables(k.Runnable()),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := super.Run(); err != nil {
			return fmt.Errorf("failed to run simulator: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return drive(gctx, k, settings, progress, cancel)
	})
	return g.Wait()
}

// drive starts the run once the worker is up and reports progress until the
// worker exits. stop shuts the supervisor down.
func drive(
	ctx context.Context,
	k *kernel.Context,
	settings simulator.Settings,
	progress *runProgress,
	stop func(),
) error {
	sim := k.Runnable()
	if err := waitRunning(ctx, sim); err != nil {
		stop()
		return fmt.Errorf("simulator did not start: %w", err)
	}
	if err := k.Start(ctx); err != nil {
		stop()
		return fmt.Errorf("failed to start run: %w", err)
	}

	var deadline <-chan time.Time
	if settings.Mode == simulator.Realtime && settings.Duration > 0 {
		timer := time.NewTimer(time.Duration(settings.Duration * float64(time.Second)))
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sim.Done():
			progress.finish(k.Status())
			return nil
		case <-ctx.Done():
			stop()
			<-sim.Done()
			progress.finish(k.Status())
			return nil
		case <-deadline:
			deadline = nil
			if err := k.Stop(ctx); err != nil && !errors.Is(err, lifecycle.ErrEventNotAllowed) {
				slog.Warn("Failed to stop run", "error", err)
			}
			stop()
		case <-ticker.C:
			progress.update(k.Status())
		}
	}
}

func renderStatus(st simulator.Status) string {
	return fmt.Sprintf("%s %s run, %s steps, t=%gs",
		fancy.StateText(st.State.String()),
		st.Mode,
		fancy.CountText(fmt.Sprint(st.Steps)),
		st.Time,
	)
}

// renderRunSaved summarizes an exported run.
func renderRunSaved(dir string, meta *storage.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", fancy.ValidText("saved run"), fancy.SummaryText(meta.ID))
	fmt.Fprintf(&b, "- Directory: %s\n", fancy.PathText(dir))
	fmt.Fprintf(&b, "- Mode: %s, step %gs\n", meta.Mode, meta.Step)
	fmt.Fprintf(&b, "- Steps: %d, t=%gs\n", meta.Steps, meta.Time)
	fmt.Fprintf(&b, "- Samples: %d of %s\n", meta.Samples, strings.Join(meta.Logs, ", "))
	fmt.Fprintf(&b, "- Files: %s", strings.Join(meta.Files, ", "))
	for _, r := range meta.Runners {
		for _, m := range r.Messages {
			fmt.Fprintf(&b, "\n  %s [%s] %s", fancy.ModuleText(r.Name), m.Level, m.Text)
		}
	}
	return b.String()
}

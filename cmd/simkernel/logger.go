package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/logging"
)

var logFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (trace, debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("SIMKERNEL_LOG_LEVEL"),
	},
	&cli.StringFlag{
		Name:    "log-format",
		Usage:   "Log format (text or json)",
		Value:   "text",
		Sources: cli.EnvVars("SIMKERNEL_LOG_FORMAT"),
	},
	&cli.StringFlag{
		Name:    "log-output",
		Usage:   "Log destination: stderr, stdout or a file path",
		Value:   "stderr",
		Sources: cli.EnvVars("SIMKERNEL_LOG_OUTPUT"),
	},
}

// logCloser releases the current log output.
var logCloser io.Closer

// setupLogging installs the default logger from the global flags.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	return ctx, installLogger(cmd.String("log-format"), cmd.String("log-level"), cmd.String("log-output"))
}

func closeLogging(context.Context, *cli.Command) error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

func installLogger(format, level, output string) error {
	_, closer, err := logging.Setup(format, level, output)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if logCloser != nil {
		_ = logCloser.Close()
	}
	logCloser = closer
	return nil
}

// applyDocumentLogging lets the [logging] section of a declaration document
// override each global log flag that was not set explicitly.
func applyDocumentLogging(cmd *cli.Command, cfg *config.Config) error {
	format, level, output := cmd.String("log-format"), cmd.String("log-level"), cmd.String("log-output")
	changed := false
	if f := cfg.Logging.Format.String(); f != "" && !cmd.IsSet("log-format") {
		format, changed = f, true
	}
	if l := cfg.Logging.Level.String(); l != "" && !cmd.IsSet("log-level") {
		level, changed = l, true
	}
	if o := cfg.Logging.Output; o != "" && !cmd.IsSet("log-output") {
		output, changed = o, true
	}
	if !changed {
		return nil
	}
	if err := installLogger(format, level, output); err != nil {
		return err
	}
	slog.Debug("Logging configured from declaration document", "format", format, "level", level)
	return nil
}

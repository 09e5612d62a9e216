package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/cmd/simkernel/server"
)

var serveCmd = &cli.Command{
	Name:      "serve",
	Usage:     "Serve the kernel command surface as MCP tools over stdio",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		configFlag,
		runsFlag,
		&cli.BoolFlag{
			Name:  "xlsx",
			Usage: "Also export series as Excel workbooks",
		},
	},
	Action: serveAction,
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the MCP session.
	if cmd.String("log-output") == "stdout" {
		return cli.Exit("--log-output stdout conflicts with the stdio transport", 1)
	}

	err := server.Run(ctx, slog.Default(), server.Options{
		ConfigPath: declarationPath(cmd),
		RunsDir:    cmd.String("runs"),
		XLSX:       cmd.Bool("xlsx"),
		Version:    cmd.Root().Version,
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

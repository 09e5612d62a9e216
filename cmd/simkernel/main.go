package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "simkernel",
		Version: Version,
		Usage:   "Run, inspect and serve modular simulations",
		Flags:   logFlags,
		Before:  setupLogging,
		After:   closeLogging,
		Commands: []*cli.Command{
			versionCmd,
			validateCmd,
			runCmd,
			watchCmd,
			serveCmd,
			runsCmd,
			plotCmd,
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/guptarohit/asciigraph"
	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/storage"
)

var plotCmd = &cli.Command{
	Name:      "plot",
	Usage:     "Plot the logged series of an exported run",
	ArgsUsage: "[id]",
	Flags: []cli.Flag{
		runsFlag,
		&cli.StringSliceFlag{
			Name:    "var",
			Aliases: []string{"v"},
			Usage:   "Variable to plot; repeat for several (default: every logged variable)",
		},
		&cli.IntFlag{
			Name:  "height",
			Usage: "Plot height in rows",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "width",
			Usage: "Plot width in columns",
			Value: 80,
		},
		&cli.IntFlag{
			Name:  "samples",
			Usage: "Plot only the newest N samples (0 for all)",
		},
		&cli.BoolFlag{
			Name:  "overlay",
			Usage: "Draw every variable in one plot",
		},
	},
	Action: plotAction,
}

// plotOptions are the rendering choices of one plot invocation.
type plotOptions struct {
	Names   []string
	Height  int
	Width   int
	Samples int
	Overlay bool
}

func plotAction(_ context.Context, cmd *cli.Command) error {
	store := storage.New(cmd.String("runs"))
	meta, err := loadRun(store, cmd.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	tbl, err := store.LoadSeries(meta.ID)
	if err != nil {
		return cli.Exit(err, 1)
	}

	opts := plotOptions{
		Names:   cmd.StringSlice("var"),
		Height:  int(cmd.Int("height")),
		Width:   int(cmd.Int("width")),
		Samples: int(cmd.Int("samples")),
		Overlay: cmd.Bool("overlay"),
	}
	if err := renderPlots(cmd.Root().Writer, meta, tbl, opts); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func renderPlots(w io.Writer, meta *storage.Metadata, tbl *storage.Table, opts plotOptions) error {
	names := opts.Names
	if len(names) == 0 {
		names = tbl.Names
	}

	var series [][]float64
	for _, name := range names {
		values, ok := tbl.Column(name)
		if !ok {
			return fmt.Errorf("%w: %q is not logged in run %s", storage.ErrNoSamples, name, meta.ID)
		}
		series = append(series, tail(values, opts.Samples))
	}
	if len(series) == 0 || len(series[0]) == 0 {
		return fmt.Errorf("%w: run %s", storage.ErrNoSamples, meta.ID)
	}

	times := tail(tbl.Time, opts.Samples)
	span := fmt.Sprintf("t=%g..%gs", times[0], times[len(times)-1])
	graphOpts := []asciigraph.Option{
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
	}

	if opts.Overlay {
		caption := fmt.Sprintf("%v %s", names, span)
		fmt.Fprintln(w, asciigraph.PlotMany(series, append(graphOpts, asciigraph.Caption(caption))...))
		fmt.Fprintln(w)
		return nil
	}

	for i, name := range names {
		caption := name
		if meta.Config != nil {
			if v, ok := meta.Config.Variable(name); ok && v.Unit != "" {
				caption = fmt.Sprintf("%s [%s]", name, v.Unit)
			}
		}
		caption += " " + span
		fmt.Fprintln(w, asciigraph.Plot(series[i], append(slices.Clone(graphOpts), asciigraph.Caption(caption))...))
		fmt.Fprintln(w)
	}
	return nil
}

// tail returns the newest n values, or all of them when n is not positive.
func tail(values []float64, n int) []float64 {
	if n <= 0 || n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/fancy"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

var runsCmd = &cli.Command{
	Name:  "runs",
	Usage: "Inspect exported runs",
	Flags: []cli.Flag{runsFlag},
	Commands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List exported runs, oldest first",
			Action: runsListAction,
		},
		{
			Name:      "show",
			Usage:     "Show the metadata of one run, or of the latest run",
			ArgsUsage: "[id]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print the raw metadata",
				},
			},
			Action: runsShowAction,
		},
	},
	Action: runsListAction,
}

func runsListAction(_ context.Context, cmd *cli.Command) error {
	store := storage.New(cmd.String("runs"))
	runs, err := store.List()
	if err != nil {
		return cli.Exit(err, 1)
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.Root().Writer, "No runs in %s\n", store.Dir())
		return nil
	}
	fmt.Fprintln(cmd.Root().Writer, renderRunTable(runs))
	return nil
}

func renderRunTable(runs []storage.Metadata) string {
	rows := make([][]string, 0, len(runs))
	for _, m := range runs {
		rows = append(rows, []string{
			m.ID,
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			m.Mode,
			strconv.FormatUint(m.Steps, 10),
			strconv.FormatFloat(m.Time, 'g', -1, 64),
			strconv.Itoa(len(m.Logs)),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(fancy.BranchStyle).
		Headers("ID", "CREATED", "MODE", "STEPS", "TIME", "LOGS").
		Rows(rows...).
		String()
}

// loadRun loads the run named by the first argument, or the latest run.
func loadRun(store *storage.Store, id string) (*storage.Metadata, error) {
	if id == "" {
		return store.Latest()
	}
	return store.Load(id)
}

func runsShowAction(_ context.Context, cmd *cli.Command) error {
	store := storage.New(cmd.String("runs"))
	meta, err := loadRun(store, cmd.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	fmt.Fprintln(w, renderRunSaved(store.Dir(), meta))
	if meta.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, meta.Config)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/fancy"
)

var validateCmd = &cli.Command{
	Name:      "validate",
	Aliases:   []string{"lint"},
	Usage:     "Validate one or more declaration documents",
	ArgsUsage: "[file...]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "tree",
			Aliases: []string{"t"},
			Usage:   "Show detailed tree view of the validated document",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the declaration document",
		},
	},
	Suggest: true,
	Action:  validateAction,
}

// validationResult is the outcome for one document.
type validationResult struct {
	Path   string
	Valid  bool
	Error  error
	Config *config.Config
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if p := cmd.String("config"); p != "" {
		paths = append([]string{p}, paths...)
	}
	if len(paths) == 0 {
		return cli.Exit(
			"declaration file path required (use the --config flag, or provide files as positional arguments)",
			1,
		)
	}

	results := validateLocal(ctx, paths)
	if err := printValidationResults(cmd.Root().Writer, results, cmd.Bool("tree")); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

// validateLocal loads and validates every path. Loading already validates, so
// a loaded document is a valid one.
func validateLocal(_ context.Context, paths []string) []validationResult {
	results := make([]validationResult, 0, len(paths))
	for _, path := range paths {
		cfg, err := config.NewConfig(path)
		results = append(results, validationResult{
			Path:   path,
			Valid:  err == nil,
			Error:  err,
			Config: cfg,
		})
	}
	return results
}

func printValidationResults(w io.Writer, results []validationResult, tree bool) error {
	var errs []error
	for _, r := range results {
		if !r.Valid {
			fmt.Fprintf(w, "%s %s\n", fancy.ErrorText("invalid"), fancy.PathText(r.Path))
			fmt.Fprintf(w, "  %v\n", r.Error)
			errs = append(errs, fmt.Errorf("%s: %w", r.Path, r.Error))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", fancy.ValidText("valid"), fancy.PathText(r.Path))
		if tree {
			fmt.Fprintln(w, r.Config)
		} else {
			fmt.Fprintln(w, renderConfigSummary(r.Path, r.Config))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d documents failed validation: %w", len(errs), len(results), errors.Join(errs...))
	}
	return nil
}

// renderConfigSummary creates a formatted summary string for the document
func renderConfigSummary(path string, cfg *config.Config) string {
	var summary strings.Builder

	summary.WriteString("\nDeclaration Summary:\n")
	summary.WriteString(fmt.Sprintf("- Path: %s\n", path))
	summary.WriteString(fmt.Sprintf("- Version: %s\n", cfg.Version))
	summary.WriteString(fmt.Sprintf("- Mode: %s, step %gs", cfg.Simulation.Mode, cfg.Simulation.Step))
	if cfg.Simulation.Duration > 0 {
		summary.WriteString(fmt.Sprintf(", duration %gs", cfg.Simulation.Duration))
	}
	summary.WriteString("\n")
	summary.WriteString(fmt.Sprintf("- Variables: %d\n", len(cfg.Variables)))
	summary.WriteString(fmt.Sprintf("- Modules: %d\n", len(cfg.Modules)))
	summary.WriteString(fmt.Sprintf("- Logs: %d\n", len(cfg.Logs)))
	summary.WriteString("\nUse --tree for a more detailed view of the document.")

	return summary.String()
}

package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/testutil"
)

const offlineDeclaration = `
logs = ["x", "n"]

[simulation]
mode = "offline"
step = 0.1
duration = 1.0

[[variables]]
name = "x"
type = "double"
unit = "m"

[[variables]]
name = "n"
type = "uint32"

[[modules]]
file = "builtin:integrator"

[[modules]]
file = "builtin:counter"
arguments = "--limit 5"
`

func writeDeclaration(t *testing.T, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, name, content)
}

// runApp runs the CLI with args and returns what it wrote to stdout. Exit
// codes are returned as errors instead of terminating the test binary.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	// Flags keep their values between runs of the shared commands, so the
	// global ones are always passed.
	argv := append([]string{
		"simkernel", "--log-level", "error", "--log-format", "text", "--log-output", "stderr",
	}, args...)
	err := app.Run(t.Context(), argv)
	return out.String(), err
}

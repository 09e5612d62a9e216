package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/config"
)

func TestApplyDocumentLogging(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logFile := filepath.Join(t.TempDir(), "logs", "sim.log")
	doc := writeDeclaration(t, "sim.toml", `
[logging]
level = "debug"
format = "json"
output = "`+logFile+`"

[[variables]]
name = "x"
type = "double"
`)
	cfg, err := config.NewConfig(doc)
	require.NoError(t, err)

	var applied bool
	cmd := &cli.Command{
		Name:  "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info"},
			&cli.StringFlag{Name: "log-format", Value: "text"},
			&cli.StringFlag{Name: "log-output", Value: "stderr"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applied = true
			require.NoError(t, applyDocumentLogging(cmd, cfg))
			slog.Debug("document logging active")
			return closeLogging(ctx, cmd)
		},
	}
	require.NoError(t, cmd.Run(t.Context(), []string{"test"}))
	require.True(t, applied)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"document logging active"`)
}

func TestSetupLoggingRejectsUnknownFormat(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	_, err := runApp(t, "--log-format", "xml", "version")
	require.Error(t, err)
}

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

const invalidDeclaration = `
logs = ["missing"]

[[variables]]
name = "x"
type = "double"
`

func TestValidateLocal(t *testing.T) {
	t.Run("valid_document", func(t *testing.T) {
		path := writeDeclaration(t, "sim.toml", offlineDeclaration)

		results := validateLocal(t.Context(), []string{path})
		require.Len(t, results, 1)
		assert.True(t, results[0].Valid)
		assert.NoError(t, results[0].Error)
		require.NotNil(t, results[0].Config)
		assert.Len(t, results[0].Config.Variables, 2)
		assert.Equal(t, path, results[0].Path)
	})

	t.Run("invalid_document", func(t *testing.T) {
		path := writeDeclaration(t, "sim.toml", invalidDeclaration)

		results := validateLocal(t.Context(), []string{path})
		require.Len(t, results, 1)
		assert.False(t, results[0].Valid)
		assert.Error(t, results[0].Error)
		assert.Nil(t, results[0].Config)
	})

	t.Run("unsupported_extension", func(t *testing.T) {
		path := writeDeclaration(t, "sim.ini", offlineDeclaration)

		results := validateLocal(t.Context(), []string{path})
		require.Len(t, results, 1)
		assert.False(t, results[0].Valid)
	})
}

func TestValidateCmd(t *testing.T) {
	t.Run("summary", func(t *testing.T) {
		path := writeDeclaration(t, "sim.toml", offlineDeclaration)

		out, err := runApp(t, "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Declaration Summary")
		assert.Contains(t, out, "- Variables: 2")
		assert.Contains(t, out, "- Modules: 2")
	})

	t.Run("tree", func(t *testing.T) {
		path := writeDeclaration(t, "sim.toml", offlineDeclaration)

		out, err := runApp(t, "validate", "--tree", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Simulation Declarations")
		assert.Contains(t, out, "builtin:counter")
	})

	t.Run("one_invalid_of_two", func(t *testing.T) {
		good := writeDeclaration(t, "good.toml", offlineDeclaration)
		bad := writeDeclaration(t, "bad.toml", invalidDeclaration)

		out, err := runApp(t, "validate", good, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 documents failed validation")
		assert.Contains(t, out, "invalid")
	})
}

func TestValidateCmd_NoArguments(t *testing.T) {
	// flags keep their values from earlier runs in this binary
	_, err := runApp(t, "validate", "--config", "")

	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr), "Expected cli.ExitCoder, got %T", err)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, exitErr.Error(), "declaration file path required")
}

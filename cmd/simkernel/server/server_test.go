package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlanticdynamic/simkernel/internal/testutil"
)

const declaration = `
logs = ["x"]

[simulation]
mode = "realtime"
step = 0.05

[[variables]]
name = "x"
type = "double"
unit = "m"

[[modules]]
file = "builtin:integrator"
`

type harness struct {
	t       *testing.T
	ctx     context.Context
	cancel  context.CancelFunc
	logs    *testutil.LogBuffer
	session *mcpsdk.ClientSession
	done    chan error
}

func startServer(t *testing.T, opts Options) *harness {
	t.Helper()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	opts.Transport = serverTransport
	logs, handler := testutil.NewLogHandler()

	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	h := &harness{t: t, ctx: ctx, cancel: cancel, logs: logs, done: make(chan error, 1)}
	go func() { h.done <- Run(ctx, slog.New(handler), opts) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	h.session = session
	return h
}

func (h *harness) call(name string) (*mcpsdk.CallToolResult, error) {
	return h.session.CallTool(h.ctx, &mcpsdk.CallToolParams{Name: name, Arguments: map[string]any{}})
}

// text returns the first text content of a successful tool call, or "".
func (h *harness) text(name string) string {
	res, err := h.call(name)
	if err != nil || res.IsError || len(res.Content) == 0 {
		return ""
	}
	content, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		return ""
	}
	return content.Text
}

func (h *harness) waitStopped() {
	h.t.Helper()
	select {
	case err := <-h.done:
		require.NoError(h.t, err)
	case <-time.After(5 * time.Second):
		h.t.Fatal("server did not stop")
	}
	assert.True(h.t, h.logs.Contains("Server shutdown complete"))
}

func TestRunServesDeclaredKernel(t *testing.T) {
	t.Parallel()
	path := testutil.WriteFile(t, "sim.toml", declaration)

	h := startServer(t, Options{
		ConfigPath: path,
		RunsDir:    filepath.Join(t.TempDir(), "runs"),
		Version:    "test",
	})

	require.Eventually(t, func() bool {
		return strings.Contains(h.text("variables"), `"x"`)
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, h.text("document"), "builtin:integrator")

	require.NoError(t, h.session.Close())
	h.waitStopped()
}

func TestRunRedeclaresOnFileChange(t *testing.T) {
	t.Parallel()
	path := testutil.WriteFile(t, "sim.toml", declaration)

	h := startServer(t, Options{ConfigPath: path})
	require.Eventually(t, func() bool {
		return strings.Contains(h.text("variables"), `"x"`)
	}, 2*time.Second, 20*time.Millisecond)

	testutil.Rewrite(t, path, declaration+`
[[variables]]
name = "y"
type = "int32"
`)
	require.Eventually(t, func() bool {
		return strings.Contains(h.text("variables"), `"y"`)
	}, 3*time.Second, 20*time.Millisecond)

	h.cancel()
	h.waitStopped()
}

func TestRunWithoutDeclaration(t *testing.T) {
	t.Parallel()

	h := startServer(t, Options{})
	res, err := h.call("export")
	require.NoError(t, err)
	assert.True(t, res.IsError)

	h.cancel()
	h.waitStopped()
}

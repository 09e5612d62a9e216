package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/atlanticdynamic/simkernel/internal/server/finitestate"
	"github.com/atlanticdynamic/simkernel/internal/sim/kernel"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/storage"
)

const offlineDoc = `
logs = ["x"]

[simulation]
mode = "offline"
step = 0.1
duration = 1.0

[[variables]]
name = "x"
type = "double"
unit = "m"

[[modules]]
file = "builtin:integrator"
`

var discard = slog.NewTextHandler(io.Discard, nil)

type ToolsTestSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	kernel  *kernel.Context
	store   *storage.Store
	runner  *Runner
	session *mcpsdk.ClientSession
	errs    chan error
}

func TestToolsTestSuite(t *testing.T) {
	suite.Run(t, new(ToolsTestSuite))
}

func (s *ToolsTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.errs = make(chan error, 2)

	k, err := kernel.New(s.ctx, kernel.WithLogHandler(discard))
	s.Require().NoError(err)
	s.kernel = k
	go func() { s.errs <- k.Runnable().Run(s.ctx) }()
	s.Require().Eventually(k.Runnable().IsRunning, time.Second, 5*time.Millisecond)

	s.store = storage.New(filepath.Join(s.T().TempDir(), "runs"), storage.WithLogHandler(discard))

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	s.runner, err = NewRunner(k,
		WithLogHandler(discard),
		WithTransport(serverTransport),
		WithStore(s.store),
		WithImplementation("simkernel-test", "0.0.1"),
	)
	s.Require().NoError(err)
	go func() { s.errs <- s.runner.Run(s.ctx) }()
	s.Require().Eventually(s.runner.IsRunning, time.Second, 5*time.Millisecond)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	s.session, err = client.Connect(s.ctx, clientTransport, nil)
	s.Require().NoError(err)
}

func (s *ToolsTestSuite) TearDownTest() {
	if s.session != nil {
		_ = s.session.Close()
	}
	s.cancel()
	for range 2 {
		select {
		case err := <-s.errs:
			s.NoError(err)
		case <-time.After(2 * time.Second):
			s.Fail("runnable did not stop")
		}
	}
	s.NoError(s.kernel.Close(context.Background()))
}

func (s *ToolsTestSuite) call(name string, args map[string]any) *mcpsdk.CallToolResult {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.session.CallTool(s.ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	s.Require().NoError(err, "tool %s", name)
	s.Require().NotEmpty(res.Content, "tool %s", name)
	return res
}

func (s *ToolsTestSuite) text(res *mcpsdk.CallToolResult) string {
	content, ok := res.Content[0].(*mcpsdk.TextContent)
	s.Require().True(ok)
	return content.Text
}

func (s *ToolsTestSuite) ok(name string, args map[string]any) string {
	res := s.call(name, args)
	s.Require().False(res.IsError, "tool %s: %s", name, s.text(res))
	return s.text(res)
}

func (s *ToolsTestSuite) decode(text string, v any) {
	s.Require().NoError(json.Unmarshal([]byte(text), v))
}

func (s *ToolsTestSuite) TestListTools() {
	res, err := s.session.ListTools(s.ctx, &mcpsdk.ListToolsParams{})
	s.Require().NoError(err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"status", "start", "stop", "pause", "declare", "document", "configure", "variables",
		"modules", "read", "series", "add_log", "remove_log", "set_module_active", "export",
	} {
		s.True(slices.Contains(names, want), "missing tool %s", want)
	}
}

func (s *ToolsTestSuite) TestOfflineRunThroughTools() {
	s.Contains(s.ok("declare", map[string]any{"document": offlineDoc}), "declared 1 variables, 1 modules, 1 logs")

	var mods []moduleOutput
	s.decode(s.ok("modules", nil), &mods)
	s.Require().Len(mods, 1)
	s.True(mods[0].Active)
	s.False(mods[0].Loaded)

	s.ok("start", nil)
	s.Require().Eventually(func() bool {
		st := s.kernel.Status()
		return st.State == lifecycle.Idle && st.Steps == 10
	}, 5*time.Second, 10*time.Millisecond)

	var status statusOutput
	s.decode(s.ok("status", nil), &status)
	s.Equal("Idle", status.State)
	s.Equal("offline", status.Mode)
	s.Equal(uint64(10), status.Steps)
	s.InDelta(1.0, status.Time, 1e-12)

	var values map[string]float64
	s.decode(s.ok("read", map[string]any{"names": []string{"x"}}), &values)
	s.InDelta(1.0, values["x"], 1e-9)

	var series seriesOutput
	s.decode(s.ok("series", map[string]any{"name": "x", "samples": 11}), &series)
	s.Require().Len(series.Time, 11)
	s.Require().Len(series.Values, 11)
	for i := range series.Time {
		s.InDelta(float64(i)/10, series.Time[i], 1e-12)
		s.InDelta(float64(i)/10, series.Values[i], 1e-9)
	}

	var meta storage.Metadata
	s.decode(s.ok("export", nil), &meta)
	s.Equal(11, meta.Samples)
	runs, err := s.store.List()
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(meta.ID, runs[0].ID)
	s.Require().Len(runs[0].Runners, 1)
	s.Equal("integrator", runs[0].Runners[0].Name)
}

func (s *ToolsTestSuite) TestDeclarationEditing() {
	s.ok("declare", map[string]any{"document": offlineDoc})

	s.ok("set_module_active", map[string]any{"file": "builtin:integrator", "active": false})
	s.False(s.kernel.Modules()[0].Active)

	s.ok("remove_log", map[string]any{"name": "x"})
	s.Empty(s.kernel.Logs())
	s.ok("add_log", map[string]any{"name": "x"})
	s.Equal([]string{"x"}, s.kernel.Logs())

	s.Contains(s.ok("configure", map[string]any{"mode": "realtime", "step": 0.05, "depth": 12}), "depth 12")
	s.InDelta(0.05, s.kernel.Settings().Step, 0)

	doc := s.ok("document", map[string]any{"format": "yaml"})
	s.Contains(doc, "builtin:integrator")
	s.Contains(doc, "realtime")

	var vars []variableOutput
	s.decode(s.ok("variables", nil), &vars)
	s.Require().Len(vars, 1)
	s.Equal(variableOutput{Name: "x", Type: "double", Unit: "m"}, vars[0])
}

func (s *ToolsTestSuite) TestToolErrors() {
	for _, tc := range []struct {
		tool string
		args map[string]any
		want string
	}{
		{"declare", map[string]any{"document": `logs = ["ghost"]`}, "ghost"},
		{"declare", map[string]any{"document": "{}", "format": "ini"}, "ini"},
		{"read", map[string]any{"names": []string{"nope"}}, "nope"},
		{"series", map[string]any{"name": "nope"}, ErrUnknownSeries.Error()},
		{"remove_log", map[string]any{"name": "nope"}, ErrUnknownSeries.Error()},
		{"stop", nil, lifecycle.ErrEventNotAllowed.Error()},
		{"configure", map[string]any{"mode": "sometimes"}, "sometimes"},
	} {
		res := s.call(tc.tool, tc.args)
		s.True(res.IsError, "tool %s should fail", tc.tool)
		s.Contains(s.text(res), tc.want, "tool %s", tc.tool)
	}
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(nil)
	require.ErrorIs(t, err, ErrNoKernel)

	k, err := kernel.New(t.Context(), kernel.WithLogHandler(discard))
	require.NoError(t, err)
	r, err := NewRunner(k, WithLogHandler(discard))
	require.NoError(t, err)
	assert.Equal(t, "mcp.Runner", r.String())
	assert.Equal(t, finitestate.StatusNew, r.GetState())
	assert.NotNil(t, r.Server())
}

func TestExportWithoutStore(t *testing.T) {
	t.Parallel()

	k, err := kernel.New(t.Context(), kernel.WithLogHandler(discard))
	require.NoError(t, err)
	r, err := NewRunner(k, WithLogHandler(discard))
	require.NoError(t, err)

	_, err = r.export(t.Context(), emptyInput{})
	require.ErrorIs(t, err, ErrNoStore)
}

func TestClientDisconnectTriggersShutdown(t *testing.T) {
	t.Parallel()

	k, err := kernel.New(t.Context(), kernel.WithLogHandler(discard))
	require.NoError(t, err)
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	r, err := NewRunner(k, WithLogHandler(discard), WithTransport(serverTransport))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()
	require.Eventually(t, r.IsRunning, time.Second, 5*time.Millisecond)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(t.Context(), clientTransport, nil)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	select {
	case <-r.GetShutdownTrigger():
	case <-time.After(2 * time.Second):
		t.Fatal("no shutdown trigger after disconnect")
	}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, finitestate.StatusStopped, r.GetState())
}

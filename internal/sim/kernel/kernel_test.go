package kernel

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlanticdynamic/simkernel/internal/config"
	"github.com/atlanticdynamic/simkernel/internal/config/loader"
	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/simulator"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

const scenario = `
logs = ["x"]

[simulation]
mode = "offline"
step = 0.1
duration = 1.0

[[variables]]
name = "x"
type = "double"
unit = "m"
init = 0.0

[[modules]]
file = "builtin:integrator"
`

func newKernel(t *testing.T, opts ...Option) *Context {
	t.Helper()
	opts = append([]Option{WithLogHandler(slog.NewTextHandler(io.Discard, nil))}, opts...)
	k, err := New(t.Context(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	return k
}

func runWorker(t *testing.T, k *Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Runnable().Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("simulator did not stop")
		}
	})
	require.Eventually(t, k.Runnable().IsRunning, time.Second, 5*time.Millisecond)
}

func declare(t *testing.T, k *Context, doc string) {
	t.Helper()
	cfg, err := config.NewConfigFromBytes([]byte(doc), loader.FormatTOML)
	require.NoError(t, err)
	require.NoError(t, k.Declare(t.Context(), cfg))
}

func TestOfflineScenario(t *testing.T) {
	t.Parallel()

	k := newKernel(t, WithShutdownOnComplete())
	declare(t, k, scenario)
	runWorker(t, k)

	require.NoError(t, k.Start(t.Context()))
	select {
	case <-k.Runnable().GetShutdownTrigger():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not complete")
	}

	status := k.Status()
	assert.Equal(t, lifecycle.Idle, status.State)
	assert.Equal(t, uint64(10), status.Steps)
	assert.InDelta(t, 1.0, k.Time(), 1e-12)

	axis, ok := k.TimeAxis()
	require.True(t, ok)
	assert.Equal(t, 1<<datalog.DefaultDepth, axis.Size())
	times := axis.Tail(11)
	for i, got := range times {
		assert.InDelta(t, float64(i)/10, got, 1e-12, "sample %d", i)
	}
	// samples before the run are prefilled with negative times
	assert.InDelta(t, -0.1, axis.Tail(12)[0], 1e-12)

	x, ok := k.Series("x")
	require.True(t, ok)
	values := x.Tail(11)
	for i, got := range values {
		assert.InDelta(t, float64(i)/10, got, 1e-9, "value %d", i)
	}

	v, err := k.Value("x")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestDeclareReplacesEverything(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	declare(t, k, scenario)
	require.Len(t, k.Variables(), 1)
	require.Equal(t, []string{"x"}, k.Logs())

	declare(t, k, `
logs = ["b"]

[simulation]
step = 0.05
depth = 11

[[variables]]
name = "a"
type = "int32"
init = 3.0

[[variables]]
name = "b"
type = "float"

[[modules]]
file = "builtin:counter"
active = false
`)
	assert.Equal(t, []variable.Variable{
		{Name: "a", Type: variable.TypeInt32, Init: 3},
		{Name: "b", Type: variable.TypeFloat},
	}, k.Variables())
	assert.Equal(t, []variable.Module{{File: "builtin:counter"}}, k.Modules())
	assert.Equal(t, []string{"b"}, k.Logs())
	assert.Equal(t, simulator.Settings{Mode: simulator.Realtime, Step: 0.05}, k.Settings())

	_, err := k.Value("x")
	require.ErrorIs(t, err, ErrUnknownVariable)
	a, err := k.Value("a")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, a, 0)

	b, ok := k.Series("b")
	require.True(t, ok)
	assert.Equal(t, 11, b.Depth())

	doc := k.Document()
	assert.Equal(t, 11, doc.Simulation.Depth)
	assert.Equal(t, "realtime", doc.Simulation.Mode)
	require.Len(t, doc.Modules, 1)
	assert.False(t, doc.Modules[0].IsActive())
	assert.Equal(t, "int32", doc.Variables[0].Type)
	require.NoError(t, doc.Validate())
}

func TestDeclareValidation(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	require.ErrorIs(t, k.Declare(t.Context(), nil), ErrNilConfig)

	bad := &config.Config{Logs: []string{"ghost"}}
	err := k.Declare(t.Context(), bad)
	require.ErrorIs(t, err, config.ErrFailedToValidateConfig)
	require.ErrorIs(t, err, config.ErrUnknownReference)
	assert.Empty(t, k.Variables())
	assert.Empty(t, bad.Version, "the caller's document is not modified")
}

func TestRejectedDeclarationKeepsPrevious(t *testing.T) {
	t.Parallel()

	k := newKernel(t, WithMaxSamples(3*1024))
	declare(t, k, scenario)

	cfg, err := config.NewConfigFromBytes([]byte(`
logs = ["a", "b", "c"]

[[variables]]
name = "a"
type = "double"

[[variables]]
name = "b"
type = "double"

[[variables]]
name = "c"
type = "double"
`), loader.FormatTOML)
	require.NoError(t, err)
	require.ErrorIs(t, k.Declare(t.Context(), cfg), datalog.ErrSampleBudget)

	require.Len(t, k.Variables(), 1)
	assert.Equal(t, "x", k.Variables()[0].Name)
	assert.Equal(t, []string{"x"}, k.Logs())
	require.Len(t, k.Modules(), 1)
	assert.Equal(t, "builtin:integrator", k.Document().Modules[0].File)
}

func TestDeclareWhileRunning(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	declare(t, k, `
[simulation]
step = 0.01

[[variables]]
name = "x"
type = "double"

[[modules]]
file = "builtin:integrator"
`)
	runWorker(t, k)

	require.NoError(t, k.Start(t.Context()))
	cfg, err := config.NewConfigFromBytes([]byte(scenario), loader.FormatTOML)
	require.NoError(t, err)
	require.ErrorIs(t, k.Declare(t.Context(), cfg), ErrBusy)
	require.ErrorIs(t, k.Configure(simulator.DefaultSettings(), 12), ErrBusy)

	require.Eventually(t, func() bool { return k.Status().Steps > 0 }, 2*time.Second, 5*time.Millisecond)
	runners := k.Runners()
	require.Len(t, runners, 1)
	assert.Equal(t, "integrator", runners[0].Name)

	require.NoError(t, k.Pause(t.Context()))
	assert.Equal(t, lifecycle.Pause, k.State())
	require.NoError(t, k.Stop(t.Context()))
	assert.Equal(t, lifecycle.Idle, k.State())
	require.NoError(t, k.Declare(t.Context(), cfg))
}

func TestRegistryDrivesStoreAndLogs(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	require.NoError(t, k.InsertVariable(variable.Variable{Name: "p.q[2]", Type: variable.TypeDouble, Init: 4}))
	require.Error(t, k.InsertVariable(variable.Variable{Name: "p.q[2]", Type: variable.TypeFloat}))

	v, err := k.Value("p.q[2]")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 0)

	require.Error(t, k.AddLog("unknown"))
	_, ok := k.TimeAxis()
	assert.False(t, ok)

	require.NoError(t, k.AddLog("p.q[2]"))
	series, ok := k.Series("p.q[2]")
	require.True(t, ok)
	assert.InDelta(t, 4.0, series.Last(), 0)

	require.NoError(t, k.RemoveVariable("p.q[2]"))
	assert.Empty(t, k.Logs())
	_, err = k.Value("p.q[2]")
	require.ErrorIs(t, err, ErrUnknownVariable)

	require.NoError(t, k.InsertModule(variable.Module{File: "builtin:gain", Active: true}))
	require.NoError(t, k.SetModuleActive("builtin:gain", false))
	assert.False(t, k.Modules()[0].Active)
	require.NoError(t, k.RemoveModule("builtin:gain"))
	assert.Empty(t, k.Modules())

	require.NoError(t, k.InsertVariable(variable.Variable{Name: "r", Type: variable.TypeUint32}))
	require.NoError(t, k.AddLog("r"))
	assert.True(t, k.RemoveLog("r"))
	assert.False(t, k.RemoveLog("r"))
	require.NoError(t, k.AddLog("r"))
	k.ClearLogs()
	_, ok = k.TimeAxis()
	assert.False(t, ok)
	assert.Empty(t, k.Snapshot().Names)
}

func TestLogDepthAppliedWhenLeavingIdle(t *testing.T) {
	t.Parallel()

	k := newKernel(t)
	declare(t, k, `
logs = ["x"]

[simulation]
step = 0.01

[[variables]]
name = "x"
type = "double"
init = 7.0
`)
	runWorker(t, k)

	require.NoError(t, k.Configure(simulator.Settings{Mode: simulator.Realtime, Step: 0.02}, 13))
	series, ok := k.Series("x")
	require.True(t, ok)
	assert.Equal(t, 10, series.Depth())

	notes := k.Subscribe(t.Context())
	require.NoError(t, k.Start(t.Context()))
	series, ok = k.Series("x")
	require.True(t, ok)
	assert.Equal(t, 13, series.Depth())
	assert.InDelta(t, 7.0, series.Value(0), 0)

	require.NoError(t, k.Stop(t.Context()))
	first := <-notes
	assert.Equal(t, lifecycle.Notification{Kind: lifecycle.Exit, State: lifecycle.Idle}, first)
}

func TestLastRunnersAfterOfflineRun(t *testing.T) {
	t.Parallel()

	k := newKernel(t, WithShutdownOnComplete())
	declare(t, k, scenario)
	runWorker(t, k)

	require.NoError(t, k.Start(t.Context()))
	select {
	case <-k.Runnable().GetShutdownTrigger():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not complete")
	}

	assert.Empty(t, k.Runners())
	last := k.LastRunners()
	require.Len(t, last, 1)
	assert.Equal(t, "builtin:integrator", last[0].File)
	assert.Zero(t, last[0].Failures)
}

package wasm

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlanticdynamic/simkernel/internal/sim/lifecycle"
	"github.com/atlanticdynamic/simkernel/internal/sim/module"
	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// assemble joins hex encoded module sections, ignoring whitespace.
func assemble(t *testing.T, sections ...string) []byte {
	t.Helper()
	bin, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(sections, " ")), ""))
	require.NoError(t, err)
	return bin
}

const (
	header = "0061736d 01000000"

	// one page of memory, exported as "memory"
	memorySection = "05 03 01 00 01"

	// memory, sim_init, sim_start, sim_step and sim_stop as functions 1 to 4
	lifecycleExports = `07 37 05
		06 6d656d6f7279 02 00
		08 73696d5f696e6974 00 01
		09 73696d5f7374617274 00 02
		08 73696d5f73746570 00 03
		08 73696d5f73746f70 00 04`
)

// integrator binds "x" at address 64 as InputOutput during init and adds dt to
// it on every step.
func integrator(t *testing.T) []byte {
	return assemble(t,
		header,
		// (i32 i32 i32) (i32) (f64 i32) (i32 i32 i32 i32)
		"01 17 04 60037f7f7f00 60017f00 60027c7f00 60047f7f7f7f00",
		// env.sim_use_double
		"02 16 01 03 656e76 0e 73696d5f7573655f646f75626c65 00 03",
		"03 05 04 00 01 02 01",
		memorySection,
		lifecycleExports,
		`0a 27 04
			0d 00 4110 41c000 4103 2002 1000 0b
			02 00 0b
			11 00 41c000 41c000 2b0300 2000 a0 390300 0b
			02 00 0b`,
		// "x\0" at 16
		"0b 08 01 00 4110 0b 02 7800",
	)
}

// printer prints "hi" as a warning when started.
func printer(t *testing.T) []byte {
	return assemble(t,
		header,
		// (i32 i32 i32) (i32) (f64 i32)
		"01 10 03 60037f7f7f00 60017f00 60027c7f00",
		// env.sim_printf2
		"02 13 01 03 656e76 0b 73696d5f7072696e746632 00 00",
		"03 05 04 00 01 02 01",
		memorySection,
		lifecycleExports,
		`0a 15 04
			02 00 0b
			0a 00 2000 4101 4120 1000 0b
			02 00 0b
			02 00 0b`,
		// "hi\0" at 32
		"0b 09 01 00 4120 0b 03 686900",
	)
}

type fakePhase struct {
	state lifecycle.State
}

func (p *fakePhase) State() lifecycle.State { return p.state }

func discard() slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(t.Context(), WithLogHandler(discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return l
}

func TestLoadRejectsIncompleteModules(t *testing.T) {
	t.Parallel()

	l := newLoader(t)

	tests := []struct {
		name    string
		bin     []byte
		missing bool
	}{
		{"empty module", assemble(t, header), true},
		{"memory only", assemble(t, header, memorySection, "07 0a 01 06 6d656d6f7279 02 00"), true},
		{"not wasm", []byte("#!/bin/sh\n"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.LoadBytes(t.Context(), tc.name, tc.bin)
			require.Error(t, err)
			if tc.missing {
				require.ErrorIs(t, err, module.ErrMissingEntryPoint)
			} else {
				require.ErrorIs(t, err, ErrCompile)
			}
		})
	}
	assert.Equal(t, 0, l.Len())
}

func TestIntegratorRun(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	file := filepath.Join(t.TempDir(), "integrator.wasm")
	require.NoError(t, os.WriteFile(file, integrator(t), 0o600))

	st := store.New()
	require.NoError(t, st.Insert(variable.Variable{Name: "x", Type: variable.TypeDouble, Unit: "m", Init: 0.5}))
	phase := &fakePhase{state: lifecycle.Init}

	r, err := module.New(t.Context(), variable.Module{File: file, Active: true}, l, st, phase,
		module.WithLogHandler(discard()))
	require.NoError(t, err)
	assert.Equal(t, "integrator", r.Name())
	assert.Equal(t, 1, l.Len())

	require.NoError(t, r.Init(t.Context(), ""))
	require.Equal(t, []module.Binding{
		{Name: "x", Type: variable.TypeDouble, Direction: variable.InputOutput, Active: true},
	}, r.Bindings())

	phase.state = lifecycle.Start
	st.Lock()
	require.NoError(t, r.SyncInits())
	st.Unlock()
	r.Start(t.Context())

	phase.state = lifecycle.Step
	for range 3 {
		st.Lock()
		require.NoError(t, r.SyncInputs())
		st.Unlock()
		r.Step(t.Context(), 0.25)
		st.Lock()
		require.NoError(t, r.SyncOutputs())
		st.Unlock()
	}

	v, err := st.Read("x")
	require.NoError(t, err)
	x, ok := v.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.25, x, 1e-12)
	assert.Equal(t, 0, r.Failures())

	// binding again outside Init is refused
	require.NoError(t, r.Init(t.Context(), ""))
	assert.Len(t, r.Bindings(), 1)

	require.NoError(t, r.Close(t.Context()))
	assert.Equal(t, 0, l.Len())
}

func TestPrinterMessages(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	mux := module.NewMux()
	mux.HandleExt(Extension, module.LoaderFunc(func(ctx context.Context, file string) (module.Plugin, error) {
		return l.LoadBytes(ctx, file, printer(t))
	}))

	r, err := module.New(t.Context(), variable.Module{File: "printer.wasm"}, mux, store.New(),
		&fakePhase{state: lifecycle.Start}, module.WithLogHandler(discard()))
	require.NoError(t, err)
	defer func() { _ = r.Close(context.Background()) }()

	require.NoError(t, r.Init(t.Context(), "ignored args"))
	r.Start(t.Context())

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, module.LevelWarning, msgs[0].Level)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestUnknownHandleIsIgnored(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	assert.NotPanics(t, func() {
		l.use(nil, variable.TypeDouble, 16, 64, 3, 999)
		l.toggle(nil, 64, 999, false)
		l.print(nil, 999, 0, 0)
	})

	// a loaded but unbound plugin is not reachable either
	p, err := l.LoadBytes(t.Context(), "integrator", integrator(t))
	require.NoError(t, err)
	defer func() { _ = p.Close(context.Background()) }()
	_, ok := l.lookup(p.(*plugin).handle, nil)
	assert.False(t, ok)
}

func TestLocationRoundTrip(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	p, err := l.LoadBytes(t.Context(), "integrator", integrator(t))
	require.NoError(t, err)
	defer func() { _ = p.Close(context.Background()) }()
	mem := p.(*plugin).mod.Memory()

	tests := []struct {
		typ   variable.Type
		value float64
	}{
		{variable.TypeDouble, math.Pi},
		{variable.TypeFloat, 1.5},
		{variable.TypeInt32, -5},
		{variable.TypeUint32, 4e9},
	}
	for _, tc := range tests {
		t.Run(tc.typ.String(), func(t *testing.T) {
			loc, ok := newLocation(mem, 128, tc.typ)
			require.True(t, ok)
			assert.Equal(t, uint32(128), loc.Key())
			require.True(t, loc.Save(tc.value))
			got, ok := loc.Load()
			require.True(t, ok)
			assert.InDelta(t, tc.value, got, 0)
		})
	}

	_, ok := newLocation(mem, mem.Size()-4, variable.TypeDouble)
	assert.False(t, ok)
	_, ok = newLocation(mem, mem.Size()-4, variable.TypeInt32)
	assert.True(t, ok)

	name, ok := readString(mem, 16)
	require.True(t, ok)
	assert.Equal(t, "x", name)
	_, ok = readString(mem, mem.Size())
	assert.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	l := newLoader(t)
	_, err := l.Load(t.Context(), filepath.Join(t.TempDir(), "absent.wasm"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClosedLoader(t *testing.T) {
	t.Parallel()

	l, err := NewLoader(t.Context(), WithLogHandler(discard()), WithMemoryLimitPages(16))
	require.NoError(t, err)
	require.NoError(t, l.Close(t.Context()))
	require.NoError(t, l.Close(t.Context()))

	_, err = l.LoadBytes(t.Context(), "integrator", integrator(t))
	require.ErrorIs(t, err, ErrClosed)
}

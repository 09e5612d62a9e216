package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// HostModule is the import module name plugins link their callbacks against.
const HostModule = "env"

// maxText bounds strings read from plugin memory.
const maxText = 4096

func (l *Loader) instantiateHost(ctx context.Context) error {
	b := l.runtime.NewHostModuleBuilder(HostModule)

	for export, typ := range map[string]variable.Type{
		"sim_use_double": variable.TypeDouble,
		"sim_use_single": variable.TypeFloat,
		"sim_use_int":    variable.TypeInt32,
		"sim_use_uint":   variable.TypeUint32,
	} {
		b = b.NewFunctionBuilder().
			WithFunc(func(ctx context.Context, m api.Module, name, ptr, dir, handle uint32) {
				l.use(m, typ, name, ptr, dir, handle)
			}).
			Export(export)
	}

	_, err := b.
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, handle uint32) {
			l.toggle(m, ptr, handle, true)
		}).
		Export("sim_on").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, handle uint32) {
			l.toggle(m, ptr, handle, false)
		}).
		Export("sim_off").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle, text uint32) {
			l.print(m, handle, uint32(module.LevelText), text)
		}).
		Export("sim_printf").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, handle, level, text uint32) {
			l.print(m, handle, level, text)
		}).
		Export("sim_printf2").
		Instantiate(ctx)
	return err
}

// use serves sim_use_*. Refusals are logged by the Runner and invisible to the plugin.
func (l *Loader) use(m api.Module, typ variable.Type, namePtr, ptr, dir, handle uint32) {
	p, ok := l.lookup(handle, m)
	if !ok {
		return
	}

	mem := m.Memory()
	name, ok := readString(mem, namePtr)
	if !ok {
		l.logger.Error("Variable name outside plugin memory", "plugin", p.name, "ptr", namePtr)
		return
	}
	loc, ok := newLocation(mem, ptr, typ)
	if !ok {
		l.logger.Error("Variable location outside plugin memory",
			"plugin", p.name, "variable", name, "ptr", ptr)
		return
	}

	_ = p.host.Use(name, typ, loc, variable.Direction(dir))
}

func (l *Loader) toggle(m api.Module, ptr, handle uint32, active bool) {
	p, ok := l.lookup(handle, m)
	if !ok {
		return
	}
	if active {
		_ = p.host.On(ptr)
	} else {
		_ = p.host.Off(ptr)
	}
}

func (l *Loader) print(m api.Module, handle, level, textPtr uint32) {
	p, ok := l.lookup(handle, m)
	if !ok {
		return
	}
	text, ok := readString(m.Memory(), textPtr)
	if !ok {
		l.logger.Warn("Message outside plugin memory", "plugin", p.name, "ptr", textPtr)
		return
	}
	p.host.Print(module.Level(level), text)
}

package wasm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
)

var _ module.Plugin = (*plugin)(nil)

type plugin struct {
	loader   *Loader
	handle   uint32
	name     string
	compiled wazero.CompiledModule
	mod      api.Module
	host     module.Host

	init, start, step, stop api.Function
	alloc                   api.Function
}

func (p *plugin) Bind(host module.Host) {
	p.host = host
}

// Init copies argv into plugin memory when the plugin exports an allocator.
// Without one the plugin receives argc 0.
func (p *plugin) Init(ctx context.Context, argv []string) error {
	var argc, ptr uint32
	if p.alloc != nil && len(argv) > 0 {
		var err error
		if ptr, err = p.writeArgv(ctx, argv); err != nil {
			return err
		}
		argc = uint32(len(argv))
	}
	_, err := p.init.Call(ctx, api.EncodeU32(argc), api.EncodeU32(ptr), api.EncodeU32(p.handle))
	return err
}

// writeArgv lays out the strings followed by the pointer array and returns the
// address of the array.
func (p *plugin) writeArgv(ctx context.Context, argv []string) (uint32, error) {
	size := 4 * len(argv)
	for _, a := range argv {
		size += len(a) + 1
	}

	res, err := p.alloc.Call(ctx, api.EncodeU32(uint32(size)))
	if err != nil {
		return 0, fmt.Errorf("%w: allocation failed: %w", ErrNoMemory, err)
	}
	base := api.DecodeU32(res[0])
	if base == 0 {
		return 0, fmt.Errorf("%w: allocator returned null", ErrNoMemory)
	}

	mem := p.mod.Memory()
	if mem == nil {
		return 0, ErrNoMemory
	}

	array := make([]byte, 4*len(argv))
	offset := base + uint32(len(array))
	for i, a := range argv {
		binary.LittleEndian.PutUint32(array[4*i:], offset)
		if !mem.WriteString(offset, a) || !mem.WriteByte(offset+uint32(len(a)), 0) {
			return 0, fmt.Errorf("%w: argv out of bounds", ErrNoMemory)
		}
		offset += uint32(len(a)) + 1
	}
	if !mem.Write(base, array) {
		return 0, fmt.Errorf("%w: argv out of bounds", ErrNoMemory)
	}
	return base, nil
}

func (p *plugin) Start(ctx context.Context) error {
	_, err := p.start.Call(ctx, api.EncodeU32(p.handle))
	return err
}

func (p *plugin) Step(ctx context.Context, dt float64) error {
	_, err := p.step.Call(ctx, api.EncodeF64(dt), api.EncodeU32(p.handle))
	return err
}

func (p *plugin) Stop(ctx context.Context) error {
	_, err := p.stop.Call(ctx, api.EncodeU32(p.handle))
	return err
}

func (p *plugin) Close(ctx context.Context) error {
	p.loader.release(p.handle)
	return errors.Join(p.mod.Close(ctx), p.compiled.Close(ctx))
}

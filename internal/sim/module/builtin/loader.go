// Package builtin provides simulation plugins compiled into the kernel. They
// follow the same contract as loaded binaries and are addressed as
// "builtin:<name>".
package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/atlanticdynamic/simkernel/internal/sim/module"
)

// Scheme is the module file prefix the loader is registered for.
const Scheme = "builtin"

// ErrUnknownPlugin is returned when no builtin plugin has the requested name
var ErrUnknownPlugin = errors.New("unknown builtin plugin")

// Factory creates a fresh plugin instance.
type Factory func() module.Plugin

var _ module.Loader = (*Loader)(nil)

// Loader creates builtin plugins by name.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoader returns a Loader with every plugin of this package registered.
func NewLoader() *Loader {
	l := &Loader{factories: make(map[string]Factory)}
	l.Register("integrator", func() module.Plugin { return &Integrator{} })
	l.Register("sine", func() module.Plugin { return &Sine{} })
	l.Register("gain", func() module.Plugin { return &Gain{} })
	l.Register("counter", func() module.Plugin { return &Counter{} })
	return l
}

// Register adds or replaces the factory for name.
func (l *Loader) Register(name string, f Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[name] = f
}

// Names lists the registered plugins.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load creates the plugin named by file, with or without the scheme prefix.
func (l *Loader) Load(_ context.Context, file string) (module.Plugin, error) {
	name := module.TrimScheme(file)

	l.mu.RLock()
	f, ok := l.factories[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	return f(), nil
}

// parseArgs parses argv against flags. argv[0] is the module name.
func parseArgs(ctx context.Context, argv []string, flags ...cli.Flag) (*cli.Command, error) {
	var parsed *cli.Command
	cmd := &cli.Command{
		Name:      argv[0],
		Flags:     flags,
		HideHelp:  true,
		Writer:    io.Discard,
		ErrWriter: io.Discard,
		Action: func(_ context.Context, c *cli.Command) error {
			parsed = c
			return nil
		},
	}
	if err := cmd.Run(ctx, argv); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", argv[0], err)
	}
	return parsed, nil
}

// base implements the parts of module.Plugin most builtins share.
type base struct {
	host module.Host
}

func (b *base) Bind(host module.Host) { b.host = host }

func (b *base) Start(context.Context) error { return nil }

func (b *base) Stop(context.Context) error { return nil }

func (b *base) Close(context.Context) error { return nil }

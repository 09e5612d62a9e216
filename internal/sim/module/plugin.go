// Package module hosts one simulation plugin per Runner.
//
// A plugin implements four lifecycle entry points and reaches back into the
// kernel only through the Host it is bound to. Every variable it binds becomes
// a store.Transfer owned by the Runner and released with it.
package module

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/simkernel/internal/sim/store"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

// Level is the severity of a plugin message.
type Level int

const (
	LevelText Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelText:
		return "text"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// slogLevel maps a plugin level onto the kernel log levels. Unknown levels are
// treated as errors.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelText:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelWarn:
		return LevelText
	case l < slog.LevelError:
		return LevelWarning
	default:
		return LevelError
	}
}

// Host is the callback surface offered to a plugin. It is only valid while one
// of the plugin's entry points is running.
type Host interface {
	// Use binds plugin memory to the store slot called name.
	Use(name string, typ variable.Type, loc store.Location, dir variable.Direction) error
	// On unmutes the binding of the memory identified by key.
	On(key any) error
	// Off mutes the binding of the memory identified by key.
	Off(key any) error
	// Print forwards a preformatted message to the kernel log.
	Print(level Level, text string)
}

// Plugin is a loaded simulation module.
type Plugin interface {
	// Bind hands the plugin its Host before Init.
	Bind(host Host)
	Init(ctx context.Context, argv []string) error
	Start(ctx context.Context) error
	Step(ctx context.Context, dt float64) error
	Stop(ctx context.Context) error
	// Close unloads the plugin and frees its memory.
	Close(ctx context.Context) error
}

// Loader opens a module file as a Plugin. Loaders report a binary without the
// lifecycle entry points with ErrMissingEntryPoint.
type Loader interface {
	Load(ctx context.Context, file string) (Plugin, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, file string) (Plugin, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, file string) (Plugin, error) {
	return f(ctx, file)
}

package module

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var _ Loader = (*Mux)(nil)

// Mux dispatches module files to loaders by scheme ("builtin:gain") or by
// extension (".wasm"). A scheme match wins over an extension match.
type Mux struct {
	mu      sync.RWMutex
	schemes map[string]Loader
	exts    map[string]Loader
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{
		schemes: make(map[string]Loader),
		exts:    make(map[string]Loader),
	}
}

// HandleScheme registers l for files of the form "scheme:name".
func (m *Mux) HandleScheme(scheme string, l Loader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[strings.ToLower(scheme)] = l
}

// HandleExt registers l for files with extension ext, including the dot.
func (m *Mux) HandleExt(ext string, l Loader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exts[strings.ToLower(ext)] = l
}

// Load opens file with the matching loader.
func (m *Mux) Load(ctx context.Context, file string) (Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if scheme, ok := Scheme(file); ok {
		if l, found := m.schemes[scheme]; found {
			return l.Load(ctx, file)
		}
	}
	if l, found := m.exts[strings.ToLower(filepath.Ext(file))]; found {
		return l.Load(ctx, file)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoLoader, file)
}

// Scheme returns the lowercase scheme prefix of file. Single letter prefixes
// are drive letters, not schemes.
func Scheme(file string) (string, bool) {
	i := strings.Index(file, ":")
	if i < 2 || strings.ContainsAny(file[:i], `/\.`) {
		return "", false
	}
	return strings.ToLower(file[:i]), true
}

// TrimScheme drops the scheme prefix of file, if any.
func TrimScheme(file string) string {
	if scheme, ok := Scheme(file); ok {
		return file[len(scheme)+1:]
	}
	return file
}

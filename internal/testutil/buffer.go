// Package testutil holds helpers shared by tests. It must only be imported from
// _test.go files.
package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// LogBuffer collects log output written from several goroutines.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogHandler returns a debug level text handler writing into a new buffer.
func NewLogHandler() (*LogBuffer, slog.Handler) {
	b := &LogBuffer{}
	return b, slog.NewTextHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// Write implements io.Writer
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether any logged line contains s.
func (b *LogBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

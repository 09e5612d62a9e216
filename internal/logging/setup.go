// Package logging builds the slog handlers used by the kernel and the CLI.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/atlanticdynamic/simkernel/internal/logging/writers"
)

// ErrUnknownFormat is returned for a log format other than text or json
var ErrUnknownFormat = errors.New("unknown log format")

// levels maps a level name to the charmbracelet level, and whether to report
// timestamps and callers. Unknown names fall back to info.
func levels(logLevel string) (lvl log.Level, timestamp, caller bool) {
	switch strings.ToLower(logLevel) {
	case "trace":
		return log.DebugLevel, true, true
	case "debug":
		return log.DebugLevel, true, false
	case "warn", "warning":
		return log.WarnLevel, false, false
	case "error":
		return log.ErrorLevel, false, false
	default:
		return log.InfoLevel, false, false
	}
}

// SetupHandlerText configures a text slog handler with the provided writer and log level
func SetupHandlerText(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	lvl, timestamp, caller := levels(logLevel)
	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: timestamp,
		ReportCaller:    caller,
		Level:           lvl,
	})
}

// SetupHandlerJSON configures a JSON slog handler with the provided writer and log level
func SetupHandlerJSON(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stdout
	}

	lvl, _, caller := levels(logLevel)
	level := slog.LevelInfo
	switch lvl {
	case log.DebugLevel:
		level = slog.LevelDebug
	case log.WarnLevel:
		level = slog.LevelWarn
	case log.ErrorLevel:
		level = slog.LevelError
	}

	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     level,
		AddSource: caller,
	})
}

// NewHandler returns a text or json handler writing to writer.
func NewHandler(format, logLevel string, writer io.Writer) (slog.Handler, error) {
	switch strings.ToLower(format) {
	case "", "text", "txt":
		return SetupHandlerText(logLevel, writer), nil
	case "json":
		return SetupHandlerJSON(logLevel, writer), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Setup opens output, builds a handler for it and installs it as the default
// logger. The returned closer releases the output.
func Setup(format, logLevel, output string) (slog.Handler, io.Closer, error) {
	if output == "" {
		output = "stderr"
	}
	w, err := writers.CreateWriter(output)
	if err != nil {
		return nil, nil, err
	}

	handler, err := NewHandler(format, logLevel, w)
	if err != nil {
		return nil, nil, errors.Join(err, w.Close())
	}

	slog.SetDefault(slog.New(handler))
	return handler, w, nil
}

// SetupLogger configures the default logger based on provided log level
func SetupLogger(logLevel string) {
	handler := SetupHandlerText(logLevel, nil)
	slog.SetDefault(slog.New(handler))
}

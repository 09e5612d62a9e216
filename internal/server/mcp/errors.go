package mcp

import "errors"

var (
	ErrNoKernel      = errors.New("MCP server needs a kernel")
	ErrNoStore       = errors.New("no run store configured")
	ErrUnknownSeries = errors.New("variable is not logged")
)

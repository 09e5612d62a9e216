package loader

import (
	"errors"
	"fmt"
)

// Loader-specific errors
var (
	ErrNoSourceProvided     = errors.New("no source provided to loader")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrUnsupportedFormat    = errors.New("unsupported document format")
	ErrDecode               = errors.New("failed to decode document")
	ErrEncode               = errors.New("failed to encode document")
)

// FormatFileError creates an error with file path context
func FormatFileError(err error, path string) error {
	return fmt.Errorf("%w: %s", err, path)
}

// FormatValidationError wraps a base error with context about where the validation failed
func FormatValidationError(baseErr error, context string) error {
	return fmt.Errorf("%s: %w", context, baseErr)
}

// FormatVariableError wraps an error with variable context
func FormatVariableError(baseErr error, index int, name string) error {
	if name == "" {
		return FormatValidationError(baseErr, fmt.Sprintf("variable at index %d", index))
	}
	return FormatValidationError(baseErr, fmt.Sprintf("variable %d (%s)", index, name))
}

// FormatModuleError wraps an error with module context
func FormatModuleError(baseErr error, index int, file string) error {
	if file == "" {
		return FormatValidationError(baseErr, fmt.Sprintf("module at index %d", index))
	}
	return FormatValidationError(baseErr, fmt.Sprintf("module %d (%s)", index, file))
}

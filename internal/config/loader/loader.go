// Package loader decodes and encodes declaration documents in TOML, YAML or
// JSON. Unknown keys are rejected in every format.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatTOML, FormatYAML, FormatJSON}

func (f Format) String() string { return string(f) }

// Extension returns the canonical file extension, with the leading dot.
func (f Format) Extension() string { return "." + string(f) }

// FormatFromString parses a format name. "yml" is accepted for YAML.
func FormatFromString(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	f, err := FormatFromString(ext)
	if err != nil || ext == "" {
		return "", FormatFileError(ErrUnsupportedExtension, path)
	}
	return f, nil
}

// Decode strictly decodes data into v.
func Decode(data []byte, format Format, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrNoSourceProvided
	}

	var err error
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(v)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, format, err)
	}
	return nil
}

// DecodeReader reads everything from r and decodes it.
func DecodeReader(r io.Reader, format Format, v any) error {
	if r == nil {
		return ErrNoSourceProvided
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	return Decode(data, format, v)
}

// DecodeFile decodes the file at path, choosing the format by extension.
func DecodeFile(path string, v any) (Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if err := Decode(data, format, v); err != nil {
		return "", FormatFileError(err, path)
	}
	return format, nil
}

// Encode renders v in format.
func Encode(v any, format Format) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch format {
	case FormatTOML:
		out, err = toml.Marshal(v)
	case FormatYAML:
		out, err = yaml.Marshal(v)
	case FormatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			out = append(out, '\n')
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, format, err)
	}
	return out, nil
}

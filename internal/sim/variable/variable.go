// Package variable holds the declaration types shared by the simulation kernel:
// scalar types, transfer directions, and variable/module declarations.
package variable

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Type is the storage type of a variable slot.
type Type int

const (
	TypeUnknown Type = iota
	TypeDouble
	TypeFloat
	TypeInt32
	TypeUint32
)

// Types lists every valid Type in table order.
var Types = []Type{TypeDouble, TypeFloat, TypeInt32, TypeUint32}

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeFloat:
		return "float"
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// IsValid reports whether t is one of the four storage types.
func (t Type) IsValid() bool {
	return t >= TypeDouble && t <= TypeUint32
}

// Convert truncates v to the range and precision of t, returning it as a float64.
func (t Type) Convert(v float64) float64 {
	switch t {
	case TypeFloat:
		return float64(float32(v))
	case TypeInt32:
		return float64(int32(v))
	case TypeUint32:
		return float64(uint32(v))
	default:
		return v
	}
}

// TypeFromString parses a type name. "single" and "int"/"uint" are accepted as
// aliases matching the plugin callback names.
func TypeFromString(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "double", "float64":
		return TypeDouble, nil
	case "float", "single", "float32":
		return TypeFloat, nil
	case "int32", "int":
		return TypeInt32, nil
	case "uint32", "uint":
		return TypeUint32, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Direction tells which way a Transfer propagates values relative to the Store.
type Direction int

const (
	Input       Direction = 1
	Output      Direction = 2
	InputOutput Direction = Input | Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputOutput:
		return "inout"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// IsValid reports whether d is Input, Output or InputOutput.
func (d Direction) IsValid() bool {
	return d == Input || d == Output || d == InputOutput
}

// IsInput reports whether values flow from the Store into the plugin.
func (d Direction) IsInput() bool { return d&Input != 0 }

// IsOutput reports whether values flow from the plugin into the Store.
func (d Direction) IsOutput() bool { return d&Output != 0 }

// Variable is a declared scalar.
type Variable struct {
	Name string
	Type Type
	Unit string
	Init float64
}

// Validate checks the name grammar and the type.
func (v Variable) Validate() error {
	if err := ValidateName(v.Name); err != nil {
		return err
	}
	if !v.Type.IsValid() {
		return fmt.Errorf("%w: %s has type %s", ErrInvalidType, v.Name, v.Type)
	}
	return nil
}

// Module is a declared plugin binary.
type Module struct {
	File      string
	Arguments string
	Active    bool
}

// Name derives the module name from its file: the base name without extension.
// A scheme prefix such as "builtin:" is dropped.
func (m Module) Name() string {
	file := m.File
	if i := strings.Index(file, ":"); i >= 0 && !strings.ContainsAny(file[:i], `/\`) {
		file = file[i+1:]
	}
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate checks that the module names a file.
func (m Module) Validate() error {
	if strings.TrimSpace(m.File) == "" {
		return ErrEmptyModuleFile
	}
	return nil
}

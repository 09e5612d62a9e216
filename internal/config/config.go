// Package config loads, validates and renders declaration documents: the
// variables, modules, logs and run settings handed to the simulation kernel.
package config

import (
	"fmt"
	"io"
	"slices"

	"github.com/atlanticdynamic/simkernel/internal/config/loader"
	"github.com/atlanticdynamic/simkernel/internal/config/logs"
	"github.com/atlanticdynamic/simkernel/internal/interpolation"
	"github.com/atlanticdynamic/simkernel/internal/sim/variable"
)

const (
	VersionLatest  = "v1"
	VersionUnknown = "unknown"
)

// Config is a declaration document.
type Config struct {
	Version    string      `toml:"version"    yaml:"version"    json:"version"`
	Simulation Simulation  `toml:"simulation" yaml:"simulation" json:"simulation"`
	Logging    logs.Config `toml:"logging"    yaml:"logging"    json:"logging"    env_interpolation:"yes"`
	Variables  []Variable  `toml:"variables"  yaml:"variables"  json:"variables"`
	Modules    []Module    `toml:"modules"    yaml:"modules"    json:"modules"    env_interpolation:"yes"`
	Logs       []string    `toml:"logs"       yaml:"logs"       json:"logs"`
}

// Variable declares a scalar in the Store.
type Variable struct {
	Name string  `toml:"name"           yaml:"name"           json:"name"`
	Type string  `toml:"type"           yaml:"type"           json:"type"`
	Unit string  `toml:"unit,omitempty" yaml:"unit,omitempty" json:"unit,omitempty"`
	Init float64 `toml:"init"           yaml:"init"           json:"init"`
}

// Module declares a plugin to load. Modules are active unless Active is false.
// File and Arguments may reference environment variables as ${NAME} or
// ${NAME:default}.
type Module struct {
	File      string `toml:"file"                yaml:"file"                json:"file"                env_interpolation:"yes"`
	Arguments string `toml:"arguments,omitempty" yaml:"arguments,omitempty" json:"arguments,omitempty" env_interpolation:"yes"`
	Active    *bool  `toml:"active,omitempty"    yaml:"active,omitempty"    json:"active,omitempty"`
}

// IsActive reports whether the module takes part in runs.
func (m Module) IsActive() bool {
	return m.Active == nil || *m.Active
}

// Declaration converts the entry into a kernel variable declaration.
func (v Variable) Declaration() (variable.Variable, error) {
	typ, err := variable.TypeFromString(v.Type)
	if err != nil {
		return variable.Variable{}, err
	}
	decl := variable.Variable{Name: v.Name, Type: typ, Unit: v.Unit, Init: typ.Convert(v.Init)}
	if err := decl.Validate(); err != nil {
		return variable.Variable{}, err
	}
	return decl, nil
}

// Declaration converts the entry into a kernel module declaration.
func (m Module) Declaration() variable.Module {
	return variable.Module{File: m.File, Arguments: m.Arguments, Active: m.IsActive()}
}

// NewConfig loads and validates the document at filePath. The format is chosen
// by extension.
func NewConfig(filePath string) (*Config, error) {
	cfg := &Config{}
	if _, err := loader.DecodeFile(filePath, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return cfg.finish()
}

// NewConfigFromBytes loads and validates a document in format.
func NewConfigFromBytes(data []byte, format loader.Format) (*Config, error) {
	cfg := &Config{}
	if err := loader.Decode(data, format, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return cfg.finish()
}

// NewConfigFromReader loads and validates a document read from r.
func NewConfigFromReader(r io.Reader, format loader.Format) (*Config, error) {
	cfg := &Config{}
	if err := loader.DecodeReader(r, format, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	if err := interpolation.InterpolateStruct(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return c, nil
}

// ApplyDefaults fills unset fields: the version, the simulation settings, and
// the logging aliases.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = VersionLatest
	}
	c.Simulation.applyDefaults()
	c.Logging.Normalize()
}

// Marshal renders the document in format.
func (c *Config) Marshal(format loader.Format) ([]byte, error) {
	return loader.Encode(c, format)
}

// Declarations converts the document into kernel declarations. The config must
// be valid.
func (c *Config) Declarations() ([]variable.Variable, []variable.Module, error) {
	vars := make([]variable.Variable, 0, len(c.Variables))
	for i, v := range c.Variables {
		decl, err := v.Declaration()
		if err != nil {
			return nil, nil, loader.FormatVariableError(err, i, v.Name)
		}
		vars = append(vars, decl)
	}

	mods := make([]variable.Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		mods = append(mods, m.Declaration())
	}
	return vars, mods, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Variables = slices.Clone(c.Variables)
	out.Logs = slices.Clone(c.Logs)
	out.Modules = make([]Module, len(c.Modules))
	for i, m := range c.Modules {
		if m.Active != nil {
			active := *m.Active
			m.Active = &active
		}
		out.Modules[i] = m
	}
	if c.Modules == nil {
		out.Modules = nil
	}
	return &out
}

// Variable returns the declaration called name.
func (c *Config) Variable(name string) (Variable, bool) {
	i := slices.IndexFunc(c.Variables, func(v Variable) bool { return v.Name == name })
	if i < 0 {
		return Variable{}, false
	}
	return c.Variables[i], true
}

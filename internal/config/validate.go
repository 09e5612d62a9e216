package config

import (
	"errors"
	"fmt"

	"github.com/atlanticdynamic/simkernel/internal/config/loader"
)

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = VersionUnknown
	}

	switch c.Version {
	case VersionLatest:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigVer, c.Version)
	}

	errz := []error{}

	if err := c.Simulation.Validate(); err != nil {
		errz = append(errz, err)
	}

	if err := c.Logging.Validate(); err != nil {
		errz = append(errz, err)
	}

	names := make(map[string]bool, len(c.Variables))
	for i, v := range c.Variables {
		if _, err := v.Declaration(); err != nil {
			errz = append(errz, loader.FormatVariableError(err, i, v.Name))
			continue
		}
		if names[v.Name] {
			errz = append(errz, loader.FormatVariableError(ErrDuplicateName, i, v.Name))
			continue
		}
		names[v.Name] = true
	}

	files := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if err := m.Declaration().Validate(); err != nil {
			errz = append(errz, loader.FormatModuleError(err, i, m.File))
			continue
		}
		if files[m.File] {
			errz = append(errz, loader.FormatModuleError(ErrDuplicateName, i, m.File))
			continue
		}
		files[m.File] = true
	}

	logged := make(map[string]bool, len(c.Logs))
	for _, name := range c.Logs {
		if !names[name] {
			errz = append(errz, fmt.Errorf("%w: log %s", ErrUnknownReference, name))
			continue
		}
		if logged[name] {
			errz = append(errz, fmt.Errorf("%w: log %s", ErrDuplicateName, name))
		}
		logged[name] = true
	}

	return errors.Join(errz...)
}

package logs

import (
	"errors"
	"fmt"
	"strings"
)

// Validate performs validation for Config
func (lc *Config) Validate() error {
	var errs []error

	if !lc.Format.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidLogFormat, lc.Format))
	}

	if !lc.Level.IsValid() {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidLogLevel, lc.Level))
	}

	if strings.Contains(lc.Output, "://") && !strings.HasPrefix(lc.Output, "file://") {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidLogOutput, lc.Output))
	}

	return errors.Join(errs...)
}

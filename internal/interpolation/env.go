// Package interpolation expands ${NAME} and ${NAME:default} references to
// environment variables inside declaration documents.
package interpolation

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ErrUndefined is returned for a reference without a default to an unset
// environment variable.
var ErrUndefined = errors.New("environment variable not defined")

// reference matches ${NAME} and ${NAME:default}; the second group is the colon.
var reference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:)?([^}]*)\}`)

// ExpandEnvVars replaces every reference in input. A set variable wins over
// the default, and ${NAME:} defaults to the empty string. Unresolved
// references are left in place and reported together.
func ExpandEnvVars(input string) (string, error) {
	if input == "" {
		return "", nil
	}

	var missing []error
	out := reference.ReplaceAllStringFunc(input, func(match string) string {
		m := reference.FindStringSubmatch(match)
		name, hasDefault, def := m[1], m[2] == ":", m[3]

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return def
		}
		missing = append(missing, fmt.Errorf("%w: %s", ErrUndefined, name))
		return match
	})
	return out, errors.Join(missing...)
}

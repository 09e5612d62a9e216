package variable

import (
	"fmt"
	"regexp"
)

// namePattern is identifier ('[' index ']')? ('.' identifier ('[' index ']')?)*
var namePattern = regexp.MustCompile(
	`^[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])?(\.[A-Za-z_][A-Za-z0-9_]*(\[[0-9]+\])?)*$`,
)

// ValidateName checks a variable name against the identifier-path grammar.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

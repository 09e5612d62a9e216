package logs

import (
	"fmt"

	"github.com/atlanticdynamic/simkernel/internal/fancy"
)

// String returns a string representation of the log configuration
func (lc *Config) String() string {
	return fmt.Sprintf("Log Config: format=%s, level=%s, output=%s", lc.Format, lc.Level, lc.output())
}

// ToTree returns a tree visualization of the log configuration
func (lc *Config) ToTree() *fancy.ComponentTree {
	tree := fancy.NewComponentTree("Logging")

	tree.AddChild(fmt.Sprintf("Format: %s", lc.Format))
	tree.AddChild(fmt.Sprintf("Level: %s", lc.Level))
	tree.AddChild(fmt.Sprintf("Output: %s", lc.output()))

	return tree
}

func (lc *Config) output() string {
	if lc.Output == "" {
		return "stderr"
	}
	return lc.Output
}

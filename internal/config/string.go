package config

import (
	"fmt"
	"strconv"

	"github.com/atlanticdynamic/simkernel/internal/fancy"
)

// String returns a pretty-printed tree representation of the config
func (c *Config) String() string {
	return ConfigTree(c)
}

// ConfigTree converts a Config struct into a rendered tree string
func ConfigTree(cfg *Config) string {
	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(fmt.Sprintf("Simulation Declarations (%s)", cfg.Version)))

	sim := t.Child("Simulation")
	sim.Child(fmt.Sprintf("Mode: %s", cfg.Simulation.Mode))
	sim.Child(fmt.Sprintf("Step: %gs", cfg.Simulation.Step))
	if cfg.Simulation.Duration > 0 {
		sim.Child(fmt.Sprintf("Duration: %gs", cfg.Simulation.Duration))
	}
	sim.Child(fmt.Sprintf("Depth: %d", cfg.Simulation.Depth))

	t.Child(cfg.Logging.ToTree().Tree())

	vars := fancy.BranchNode("Variables", "("+strconv.Itoa(len(cfg.Variables))+")")
	for _, v := range cfg.Variables {
		vt := fancy.VariableTree(v.Name)
		vt.AddChild(fmt.Sprintf("Type: %s", v.Type))
		if v.Unit != "" {
			vt.AddChild(fmt.Sprintf("Unit: %s", v.Unit))
		}
		vt.AddChild(fmt.Sprintf("Init: %g", v.Init))
		vars.Child(vt.Tree())
	}
	t.Child(vars)

	mods := fancy.BranchNode("Modules", "("+strconv.Itoa(len(cfg.Modules))+")")
	for _, m := range cfg.Modules {
		name := m.Declaration().Name()
		mt := fancy.ModuleTree(name)
		if !m.IsActive() {
			mt = fancy.NewComponentTree(fancy.InactiveText(name))
		}
		mt.AddChild(fmt.Sprintf("File: %s", fancy.PathText(m.File)))
		if m.Arguments != "" {
			mt.AddChild(fmt.Sprintf("Arguments: %s", fancy.TruncateString(m.Arguments, 60)))
		}
		mods.Child(mt.Tree())
	}
	t.Child(mods)

	logged := fancy.BranchNode("Logs", "("+strconv.Itoa(len(cfg.Logs))+")")
	for _, name := range cfg.Logs {
		logged.Child(fancy.VariableText(name))
	}
	t.Child(logged)

	return t.String()
}

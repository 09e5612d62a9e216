package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette for declaration trees, run listings and the watch view, one color
// per kind of element. Values are ANSI 256 codes.
var (
	ColorRoot     = lipgloss.Color("39")
	ColorHeader   = lipgloss.Color("15")
	ColorMuted    = lipgloss.Color("250")
	ColorBranch   = lipgloss.Color("240")
	ColorAccent   = lipgloss.Color("45") // counts and plotted series
	ColorVariable = lipgloss.Color("208")
	ColorModule   = lipgloss.Color("82")
	ColorState    = lipgloss.Color("201")
	ColorWarn     = lipgloss.Color("228")
	ColorError    = lipgloss.Color("196")
)

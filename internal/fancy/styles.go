package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Common styles that can be used across the application
var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorRoot).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorHeader).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorBranch)

	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	VariableStyle = lipgloss.NewStyle().
			Foreground(ColorVariable)

	ModuleStyle = lipgloss.NewStyle().
			Foreground(ColorModule)

	StateStyle = lipgloss.NewStyle().
			Foreground(ColorState).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorWarn)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InactiveStyle = lipgloss.NewStyle().
			Foreground(ColorBranch).
			Strikethrough(true)
)

// VariableText styles a variable name
func VariableText(text string) string {
	return VariableStyle.Render(text)
}

// ModuleText styles a module name
func ModuleText(text string) string {
	return ModuleStyle.Render(text)
}

// StateText styles a lifecycle state
func StateText(text string) string {
	return StateStyle.Render(text)
}

// InactiveText styles a disabled module or binding
func InactiveText(text string) string {
	return InactiveStyle.Render(text)
}

// Validation-specific styling functions

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return ModuleStyle.Render(text)
}

// WarnText styles warning text (yellow)
func WarnText(text string) string {
	return WarnStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// SummaryText styles summary information (dark gray)
func SummaryText(text string) string {
	return BranchStyle.Render(text)
}

// CountText styles count numbers (cyan)
func CountText(text string) string {
	return ComponentStyle.Render(text)
}

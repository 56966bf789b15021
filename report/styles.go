package report

import "github.com/charmbracelet/lipgloss"

// Color palette (ANSI 256).
const (
	ColorAccent   = "75"  // headers, best scores
	ColorWhite    = "255" // values
	ColorGray     = "245" // labels
	ColorDarkGray = "238" // borders
	ColorRed      = "196" // failures
	ColorYellow   = "220" // warnings
)

// Styles holds the styles used to render search reports.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Best   lipgloss.Style
	Dim    lipgloss.Style
	Warn   lipgloss.Style
	Panel  lipgloss.Style
}

// DefaultStyles returns colored styles for terminals.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Value:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Best:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
	}
}

// NoColorStyles returns plain styles for pipes and files. Panels keep their
// border so the layout is the same.
func NoColorStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle(),
		Header: lipgloss.NewStyle(),
		Label:  lipgloss.NewStyle(),
		Value:  lipgloss.NewStyle(),
		Best:   lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle(),
		Warn:   lipgloss.NewStyle(),
		Panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

package confirm

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme represents the color theme for the confirmation prompt
type Theme struct {
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Accent    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Subtle    lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
}

// GruvboxTheme creates a Gruvbox-inspired theme
func GruvboxTheme() Theme {
	return Theme{
		Primary: lipgloss.AdaptiveColor{
			Light: "#b8bb26",
			Dark:  "#b8bb26",
		},
		Secondary: lipgloss.AdaptiveColor{
			Light: "#fe8019",
			Dark:  "#fe8019",
		},
		Accent: lipgloss.AdaptiveColor{
			Light: "#d3869b",
			Dark:  "#d3869b",
		},
		Success: lipgloss.AdaptiveColor{
			Light: "#98971a",
			Dark:  "#b8bb26",
		},
		Error: lipgloss.AdaptiveColor{
			Light: "#cc241d",
			Dark:  "#fb4934",
		},
		Subtle: lipgloss.AdaptiveColor{
			Light: "#928374",
			Dark:  "#7c6f64",
		},
		Border: lipgloss.AdaptiveColor{
			Light: "#d5c4a1",
			Dark:  "#504945",
		},
		Text: lipgloss.AdaptiveColor{
			Light: "#3c3836",
			Dark:  "#fbf1c7",
		},
	}
}

// Styles holds the rendered lipgloss styles for the prompt
type Styles struct {
	Title       lipgloss.Style
	Category    lipgloss.Style
	Instruction lipgloss.Style
	Origin      lipgloss.Style
	DiffOld     lipgloss.Style
	DiffNew     lipgloss.Style
	Help        lipgloss.Style
	Box         lipgloss.Style
}

// DefaultStyles builds the prompt styles from the default theme
func DefaultStyles() Styles {
	theme := GruvboxTheme()

	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		Category: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
		Instruction: lipgloss.NewStyle().
			Foreground(theme.Secondary),
		Origin: lipgloss.NewStyle().
			Foreground(theme.Subtle),
		DiffOld: lipgloss.NewStyle().
			Foreground(theme.Error),
		DiffNew: lipgloss.NewStyle().
			Foreground(theme.Success),
		Help: lipgloss.NewStyle().
			Foreground(theme.Subtle),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

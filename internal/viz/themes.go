package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the colour scheme of the live view.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Signal  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Active  lipgloss.Color
	Warning lipgloss.Color
}

var (
	ThemeScanner = Theme{
		Name:    "scanner",
		Primary: lipgloss.Color("#7fdbff"),
		Accent:  lipgloss.Color("#ffdc00"),
		Signal:  lipgloss.Color("#2ecc40"),
		Text:    lipgloss.Color("#f0f0f0"),
		Muted:   lipgloss.Color("#666677"),
		Active:  lipgloss.Color("#ff4136"),
		Warning: lipgloss.Color("#ff851b"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Signal:  lipgloss.Color("#00cc00"),
		Text:    lipgloss.Color("#00ff00"),
		Muted:   lipgloss.Color("#005500"),
		Active:  lipgloss.Color("#ffff00"),
		Warning: lipgloss.Color("#ffff00"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Signal:  lipgloss.Color("#cccccc"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Active:  lipgloss.Color("#0088ff"),
		Warning: lipgloss.Color("#ffaa00"),
	}

	Themes = []Theme{ThemeScanner, ThemeRetroGreen, ThemeMinimal}
)

// GetTheme returns a theme by name, or the first theme.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// next returns the theme after t, wrapping around.
func (t Theme) next() Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

type styles struct {
	canvas, stats, header, label, value, active, graph, help, warn lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		canvas: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 2),
		stats: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(1, 2).
			Width(46),
		header: lipgloss.NewStyle().Foreground(t.Accent).Bold(true).MarginBottom(1),
		label:  lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:  lipgloss.NewStyle().Foreground(t.Text),
		active: lipgloss.NewStyle().Foreground(t.Active).Bold(true),
		graph:  lipgloss.NewStyle().Foreground(t.Signal).Padding(1, 0),
		help:   lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		warn:   lipgloss.NewStyle().Foreground(t.Warning),
	}
}

package logging

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

// palette holds per-level styles bound to one renderer.
type palette struct {
	label map[Level]lipgloss.Style
	text  map[Level]lipgloss.Style
}

func newPalette(r *lipgloss.Renderer) palette {
	return palette{
		label: map[Level]lipgloss.Style{
			LevelDebug:   r.NewStyle().Foreground(colorDim),
			LevelInfo:    r.NewStyle().Foreground(colorBlue),
			LevelStep:    r.NewStyle().Foreground(colorBlue).Bold(true),
			LevelSuccess: r.NewStyle().Foreground(colorGreen).Bold(true),
			LevelWarn:    r.NewStyle().Foreground(colorYellow).Bold(true),
			LevelError:   r.NewStyle().Foreground(colorRed).Bold(true),
		},
		text: map[Level]lipgloss.Style{
			LevelDebug:   r.NewStyle().Foreground(colorDim),
			LevelInfo:    r.NewStyle(),
			LevelStep:    r.NewStyle().Foreground(colorWhite).Bold(true),
			LevelSuccess: r.NewStyle().Foreground(colorGreen),
			LevelWarn:    r.NewStyle().Foreground(colorYellow),
			LevelError:   r.NewStyle().Foreground(colorRed),
		},
	}
}

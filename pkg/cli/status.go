package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Laudkyle/NaviAudio/pkg/session"
)

// Theme is the color scheme for status output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Busy    lipgloss.Color
	Good    lipgloss.Color
	Bad     lipgloss.Color
}

// DefaultTheme is the default palette.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Busy:    lipgloss.Color("#f2cc60"),
	Good:    lipgloss.Color("#3fb950"),
	Bad:     lipgloss.Color("#f85149"),
}

// Styles holds the styles derived from a Theme.
type Styles struct {
	Phase  map[session.Phase]lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}

// NewStyles derives styles from t.
func NewStyles(t Theme) Styles {
	phase := lipgloss.NewStyle().Bold(true).Width(12)
	return Styles{
		Phase: map[session.Phase]lipgloss.Style{
			session.Idle:       phase.Foreground(t.Dim),
			session.Recording:  phase.Foreground(t.Busy),
			session.Processing: phase.Foreground(t.Busy),
			session.Ready:      phase.Foreground(t.Good),
			session.Failed:     phase.Foreground(t.Bad),
		},
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

var (
	defaultStyles = NewStyles(DefaultTheme)

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))
	successStyle = lipgloss.NewStyle().Foreground(DefaultTheme.Good)
	warnStyle    = lipgloss.NewStyle().Foreground(DefaultTheme.Busy)
)

// RenderState renders a one-line status: the phase tag followed by the
// state's message.
func RenderState(s session.State) string {
	style, ok := defaultStyles.Phase[s.Phase]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return style.Render("["+s.Phase.String()+"]") + " " + s.Message()
}

// RenderTable renders rows under headers with the default styles.
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(defaultStyles.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return defaultStyles.Header
			}
			return defaultStyles.Cell
		})
	return t.Render()
}

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// HourGrid describes the 24 hour cells of a schedule.
type HourGrid struct {
	// Enabled reports for every hour whether requests are admitted.
	Enabled [models.HoursPerDay]bool
	Current int
	// Cursor is the selected hour, or -1 for none.
	Cursor int
}

// NewHourGrid builds a grid from the effective hour schedule of a state.
func NewHourGrid(state *models.QuotaState, current, cursor int) HourGrid {
	g := HourGrid{Current: current, Cursor: cursor}
	for h := range models.HoursPerDay {
		g.Enabled[h] = state.HourEnabled(h)
	}
	return g
}

// Render draws the grid as two rows of twelve hours.
func (g HourGrid) Render() string {
	var rows []string
	for start := 0; start < models.HoursPerDay; start += 12 {
		cells := make([]string, 0, 12)
		for h := start; h < start+12; h++ {
			cells = append(cells, g.cell(h))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(rows, "\n")
}

func (g HourGrid) cell(h int) string {
	style := styles.HourDisabledStyle
	if g.Enabled[h] {
		style = styles.HourEnabledStyle
	}
	if h == g.Cursor {
		style = styles.HourCursorStyle
	}
	if h == g.Current {
		style = style.Inherit(styles.HourCurrentStyle)
	}
	return style.Render(fmt.Sprintf("%02d", h))
}

// Legend returns a one-line key for the grid colors.
func (g HourGrid) Legend() string {
	return RenderLegend([]LegendItem{
		{Label: "enabled", Color: styles.Success},
		{Label: "disabled", Color: styles.TextMuted},
		{Label: "selected", Color: styles.Primary},
	})
}

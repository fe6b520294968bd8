package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// Series colors of the daily request chart. They match the asciigraph
// colors RenderDualLineChart draws with.
var (
	ChartRequestsColor  = lipgloss.Color("#7D56F4")
	ChartSucceededColor = lipgloss.Color("#51cf66")
)

var (
	heatBlocks = []rune{'░', '▒', '▓', '█'}
	heatColors = []lipgloss.Color{styles.Subtle, styles.Success, styles.Warning, styles.Error}
	sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
)

// peak returns the largest value, or 1 when there is nothing positive, so it
// can always be divided by.
func peak(values []float64) float64 {
	p := 0.0
	for _, v := range values {
		p = max(p, v)
	}
	if p == 0 {
		return 1
	}
	return p
}

// level maps v in [0, peak] onto one of n steps.
func level(v, peak float64, n int) int {
	return min(max(int(v/peak*float64(n-1)), 0), n-1)
}

// RenderDualLineChart plots requests against succeeded requests, one point
// per day.
func RenderDualLineChart(requests, succeeded []float64, width, height int, caption string) string {
	if len(requests) == 0 && len(succeeded) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// PlotMany needs series of equal length.
	n := max(len(requests), len(succeeded))
	a, b := make([]float64, n), make([]float64, n)
	copy(a, requests)
	copy(b, succeeded)

	return asciigraph.PlotMany([][]float64{a, b},
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.LowerBound(0),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(asciigraph.Purple, asciigraph.Green),
	)
}

// RenderBarChart draws one horizontal bar per value, labels right-aligned.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, len(l))
	}
	barWidth := max(width-labelWidth-10, 10)
	top := peak(values)
	bar := lipgloss.NewStyle().Foreground(styles.Primary)

	lines := make([]string, len(values))
	for i, v := range values {
		var label string
		if i < len(labels) {
			label = labels[i]
		}
		n := max(int(v/top*float64(barWidth)), 0)
		lines[i] = fmt.Sprintf("%*s │%s %.0f", labelWidth, label, bar.Render(strings.Repeat("█", n)), v)
	}
	return strings.Join(lines, "\n")
}

// RenderHourlyHeatmap draws 24 cells, one per hour, shaded by count. Hours
// for which enabled returns false are drawn as a muted dot. enabled may be
// nil.
func RenderHourlyHeatmap(counts []float64, enabled func(hour int) bool) string {
	hours := make([]float64, 24)
	copy(hours, counts)
	top := peak(hours)
	closed := lipgloss.NewStyle().Foreground(styles.TextMuted)

	var b strings.Builder
	b.WriteString("00 ")
	for h, v := range hours {
		if h == 12 {
			b.WriteByte(' ')
		}
		if enabled != nil && !enabled(h) && v == 0 {
			b.WriteString(closed.Render("·"))
			continue
		}
		i := level(v, top, len(heatBlocks))
		b.WriteString(lipgloss.NewStyle().Foreground(heatColors[i]).Render(string(heatBlocks[i])))
	}
	b.WriteString(" 23")
	return b.String()
}

// RenderSparkline draws values as block characters, sampling them down to at
// most width cells.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	top := peak(values)
	step := max(float64(len(values))/float64(width), 1)

	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := int(float64(i) * step)
		if idx >= len(values) {
			break
		}
		b.WriteRune(sparkChars[level(values[idx], top, len(sparkChars))])
	}
	return b.String()
}

// LegendItem is one entry of RenderLegend.
type LegendItem struct {
	Label string
	Color lipgloss.TerminalColor
}

// RenderLegend draws a colored square before each label.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = lipgloss.NewStyle().Foreground(item.Color).Render("■") + " " + item.Label
	}
	return strings.Join(parts, "  ")
}

// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/ui/styles"
)

const (
	barEmptyColor = "#ff6b6b"
	barFullColor  = "#51cf66"
	dayStartColor = "#ffd93d"
	dayEndColor   = "#6c5ce7"
)

// QuotaBar renders a remaining-budget bar with label and counts.
type QuotaBar struct {
	progress progress.Model
}

// NewQuotaBar creates a new quota bar with gradient colors.
func NewQuotaBar() QuotaBar {
	p := progress.New(
		progress.WithScaledGradient(barEmptyColor, barFullColor),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return QuotaBar{progress: p}
}

// View renders the bar for remaining out of limit.
func (q QuotaBar) View(label string, remaining, limit, width int) string {
	percent := 0.0
	if limit > 0 {
		percent = float64(remaining) / float64(limit) * 100
	}

	q.progress.Width = max(width-36, 10)
	bar := q.progress.ViewAs(percent / 100)

	labelStr := lipgloss.NewStyle().Foreground(styles.TextSecondary).Width(10).Render(label)
	percentStr := styles.GetQuotaStyle(percent, remaining == 0).
		Width(6).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))
	countStr := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(14).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%d / %d", remaining, limit))

	return lipgloss.JoinHorizontal(lipgloss.Center, labelStr, bar, " ", percentStr, countStr)
}

// RenderDayBar renders how much of the current day has passed.
func RenderDayBar(percent float64, width int) string {
	return renderGradient(percent, width, dayStartColor, dayEndColor)
}

// RenderGradientBar renders just the bar part with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	return renderGradient(percent/100, width, barEmptyColor, barFullColor)
}

func renderGradient(fraction float64, width int, from, to string) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*fraction), 0), width)

	var b strings.Builder
	empty := lipgloss.NewStyle().Foreground(styles.Subtle)
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(interpolateColor(from, to, t)))
			b.WriteString(style.Render("█"))
		} else {
			b.WriteString(empty.Render("░"))
		}
	}
	return b.String()
}

// RenderLoadingBar renders a shimmering placeholder bar for the given frame.
func RenderLoadingBar(width, frame int) string {
	const cycle = 120
	width = max(width, 10)

	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(width))

	var b strings.Builder
	for i := range width {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}

		switch {
		case dist < 3:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}
	return b.String()
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}

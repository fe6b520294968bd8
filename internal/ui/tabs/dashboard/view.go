package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/ui/components"
	"github.com/j-veylop/mediagate/internal/ui/styles"
)

const (
	indentSpace  = "    "
	percentWidth = 6
	countWidth   = 14
	maxTaskRows  = 8
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() && m.state.GetSnapshot() == nil {
		return m.renderLoading()
	}

	sections := []string{
		m.renderTitle(),
		m.renderBudget(),
		m.renderSchedule(),
		m.renderLastBatch(),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	m.spinner.SetResources(m.state.GetLoadingResources())
	return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("mediagate")
	subtitle := styles.HelpStyle.Render("Quota-gated media acquisition")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func cardTitle(icon, title string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	return fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title))
}

func (m *Model) renderBudget() string {
	width := m.cardWidth()
	rows := []string{cardTitle("◈", "Budget"), ""}

	if m.state.GetSnapshot() == nil {
		rows = append(rows,
			m.renderBarLabel("Daily", ""),
			indentSpace+components.RenderLoadingBar(width-12, m.animationFrame),
			"",
			m.renderBarLabel("Monthly", ""),
			indentSpace+components.RenderLoadingBar(width-12, m.animationFrame),
		)
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	r := m.state.GetRemaining()

	limitNote := fmt.Sprintf("limit %d", r.DailyLimit)
	if r.ManualLimit {
		limitNote = styles.ManualLimitStyle.Render(fmt.Sprintf("limit %d (manual)", r.DailyLimit))
	}
	rows = append(rows,
		m.renderBarLabel("Daily", limitNote),
		m.renderBudgetBar(m.displayPercent(animDaily, r.DailyPercent()), r.Daily, r.DailyLimit, width-4),
		"",
		m.renderBarLabel("Monthly", fmt.Sprintf("limit %d", r.MonthlyLimit)),
		m.renderBudgetBar(m.displayPercent(animMonthly, r.MonthlyPercent()), r.Monthly, r.MonthlyLimit, width-4),
		"",
		m.renderBarLabel("Day", ""),
		m.renderDayProgress(width-4),
	)
	if p := m.state.GetProjection(); p != nil {
		rows = append(rows, "", renderForecast(p))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderBarLabel(label, note string) string {
	labelStr := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render(label)
	if note == "" {
		return "  " + labelStr
	}
	return fmt.Sprintf("  %s  %s", labelStr, styles.HelpStyle.Render(note))
}

func (m *Model) renderBudgetBar(percent float64, remaining, limit, width int) string {
	barWidth := max(width-len(indentSpace)-percentWidth-countWidth-2, 10)

	percentStr := styles.GetQuotaStyle(percent, remaining == 0).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))
	countStr := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(countWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%d / %d", remaining, limit))

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		components.RenderGradientBar(percent, barWidth),
		" ",
		percentStr,
		countStr,
	)
}

func (m *Model) renderDayProgress(width int) string {
	now := m.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	untilReset := midnight.Sub(now)
	fraction := 1 - untilReset.Hours()/24

	barWidth := max(width-len(indentSpace)-percentWidth-countWidth-2, 10)
	resetStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(percentWidth + countWidth).
		Align(lipgloss.Right).
		Render("resets in " + formatDuration(untilReset))

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		components.RenderDayBar(fraction, barWidth),
		" ",
		resetStr,
	)
}

// renderForecast renders the depletion forecast as a status badge and a summary.
func renderForecast(p *models.Projection) string {
	badge := styles.GetProjectionStyle(p.Status).Render("[" + string(p.Status) + "]")

	var summary string
	switch p.Status {
	case models.ProjectionUnknown:
		summary = "no recent requests"
	case models.ProjectionSafe:
		summary = fmt.Sprintf("%.1f req/h, lasts the day", p.EffectiveRate())
	default:
		if p.Remaining == 0 {
			summary = "daily budget spent"
		} else {
			summary = fmt.Sprintf("%.1f req/h, empty at %s (in %s)",
				p.EffectiveRate(), p.DepleteAt.Format("15:04"),
				formatDuration(p.DepleteAt.Sub(p.GeneratedAt)))
		}
	}

	details := styles.HelpStyle.Render(fmt.Sprintf("%s confidence, %s", p.Confidence, strings.ToLower(p.VsHistorical)))
	return fmt.Sprintf("  %s %s %s  %s",
		lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).Render("Forecast"),
		badge, summary, details)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "---"
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %02dm", h, mins)
}

func (m *Model) renderSchedule() string {
	width := m.cardWidth()
	rows := []string{cardTitle("◷", "Schedule"), ""}

	snap := m.state.GetSnapshot()
	if snap == nil {
		rows = append(rows, "  "+styles.HelpStyle.Render("Waiting for quota state..."))
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	r := m.state.GetRemaining()
	status := styles.SuccessTextStyle.Render("open")
	if !r.HourEnabled {
		status = styles.ErrorTextStyle.Render("closed")
	}
	rows = append(rows, fmt.Sprintf("  Hour %02d:00 is %s", r.CurrentHour, status))

	cursorState := "disabled"
	if snap.HourEnabled(m.cursor) {
		cursorState = "enabled"
	}
	rows = append(rows, "  "+styles.HelpStyle.Render(fmt.Sprintf("Selected %02d:00 (%s)", m.cursor, cursorState)))
	rows = append(rows, "")

	grid := components.NewHourGrid(snap, r.CurrentHour, m.cursor)
	for line := range strings.SplitSeq(grid.Render(), "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "", "  "+grid.Legend())

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderLastBatch() string {
	width := m.cardWidth()
	rows := []string{cardTitle("▣", "Last Batch"), ""}

	b := m.state.GetLastBatch()
	if b == nil {
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows,
			fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No batch yet")),
			"",
			styles.InfoTextStyle.Render("  ╰─▶ Run mediagate fetch URL... to acquire media"),
		)
		return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	counts := make(map[models.TaskStatus]int)
	for _, t := range b.Tasks {
		counts[t.Status]++
	}
	rows = append(rows, fmt.Sprintf("  %s  %s  %s %s  %s %s  %s %s",
		lipgloss.NewStyle().Bold(true).Render(shortID(b.ID)),
		styles.HelpStyle.Render(b.StartedAt.Format("15:04:05")),
		styles.SuccessTextStyle.Render("✓"), fmt.Sprint(counts[models.TaskCompleted]),
		styles.ErrorTextStyle.Render("✗"), fmt.Sprint(counts[models.TaskFailed]),
		styles.WarningTextStyle.Render("≡"), fmt.Sprint(counts[models.TaskDuplicate]),
	))
	rows = append(rows, "")

	urlWidth := max(width-30, 20)
	for i, t := range b.Tasks {
		if i == maxTaskRows {
			rows = append(rows, styles.HelpStyle.Render(fmt.Sprintf("  … %d more", len(b.Tasks)-maxTaskRows)))
			break
		}
		rows = append(rows, renderTaskRow(t, urlWidth))
	}

	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderTaskRow(t *models.MediaTask, urlWidth int) string {
	typeStr := lipgloss.NewStyle().
		Foreground(styles.GetMediaColor(t.Type)).
		Width(7).
		Render(t.Type.String())
	statusStr := styles.GetStatusStyle(t.Status).Width(10).Render(string(t.Status))

	url := t.URL
	if len(url) > urlWidth {
		url = url[:urlWidth-1] + "…"
	}
	return fmt.Sprintf("  %s %s %s", typeStr, statusStr, url)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/ui/components"
	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderRecentRequests(),
	}
	sections = append(sections, m.renderArchive()...)

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) cardWidth() int {
	return max(m.width-6, 40)
}

func card(width int, icon, title string, body []string) string {
	iconStr := lipgloss.NewStyle().Foreground(styles.Primary).Render(icon)
	rows := append([]string{fmt.Sprintf("%s %s", iconStr, styles.CardTitleStyle.Render(title)), ""}, body...)
	return styles.CardStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func indent(block string) []string {
	var rows []string
	for line := range strings.SplitSeq(block, "\n") {
		rows = append(rows, "  "+line)
	}
	return rows
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("History")

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.String()))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if !m.loadedAt.IsZero() {
		subtitle = styles.HelpStyle.Render("Archive loaded " + humanize.Time(m.loadedAt))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

// renderRecentRequests shows the bounded request ring kept in the quota state.
func (m *Model) renderRecentRequests() string {
	width := m.cardWidth()
	stats := m.state.GetStats()

	var rows []string
	if stats.TotalRequests == 0 && stats.HistorySize == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No requests recorded yet"))
		return card(width, "◴", "Recent Requests", rows)
	}

	rows = append(rows, fmt.Sprintf("  Total %s  Allowed %s  Blocked %s",
		lipgloss.NewStyle().Bold(true).Render(humanize.Comma(int64(stats.TotalRequests))),
		styles.SuccessTextStyle.Render(humanize.Comma(int64(stats.TotalAllowed))),
		styles.ErrorTextStyle.Render(humanize.Comma(int64(stats.TotalBlocked))),
	))
	if stats.LastRequestTime != nil {
		rows = append(rows, styles.HelpStyle.Render("  Last request "+humanize.Time(*stats.LastRequestTime)))
	}
	rows = append(rows, "")

	var values []float64
	var labels []string
	for h, c := range stats.HourlyCounts {
		if c > 0 {
			values = append(values, float64(c))
			labels = append(labels, fmt.Sprintf("%02d:00", h))
		}
	}
	if len(values) > 0 {
		rows = append(rows, indent(components.RenderBarChart(values, labels, max(width-12, 30)))...)
		peak, count := stats.PeakHour()
		rows = append(rows, "", fmt.Sprintf("  Peak: %s (%d of last %d)",
			lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).
				Render(fmt.Sprintf("%02d:00-%02d:00", peak, (peak+1)%24)),
			count, stats.HistorySize,
		))
	}

	if snap := m.state.GetSnapshot(); snap != nil && len(snap.RequestHistory) > 0 {
		outcomes := make([]float64, len(snap.RequestHistory))
		for i, r := range snap.RequestHistory {
			if r.Success {
				outcomes[i] = 1
			}
		}
		rows = append(rows, "", "  Outcomes "+components.RenderSparkline(outcomes, max(width-20, 20)))
	}

	return card(width, "◴", "Recent Requests", rows)
}

func (m *Model) renderArchive() []string {
	width := m.cardWidth()

	switch {
	case !m.archiveEnabled():
		return []string{card(width, "▤", "Archive", []string{styles.HelpStyle.Render("  Archive disabled")})}
	case m.loading:
		return []string{card(width, "▤", "Archive", []string{styles.HelpStyle.Render("  Loading archive...")})}
	case m.err != nil:
		return []string{card(width, "▤", "Archive", []string{
			fmt.Sprintf("  %s %s", styles.ErrorTextStyle.Render("Error:"), m.err),
		})}
	case !m.archive.HasData():
		return []string{card(width, "▤", "Archive", []string{
			styles.HelpStyle.Render("  No archived requests in this range."),
			styles.HelpStyle.Render("  Data will appear as batches are recorded."),
		})}
	}

	return []string{
		m.renderSummary(),
		m.renderDailyChart(),
		m.renderHourlyHeatmap(),
		m.renderRecentTasks(),
	}
}

func (m *Model) renderSummary() string {
	width := m.cardWidth()
	s := m.archive.summary

	rows := []string{
		fmt.Sprintf("  Requests %s  Tasks %s  Duplicates %s  Stored %s",
			lipgloss.NewStyle().Bold(true).Render(humanize.Comma(int64(s.TotalRequests))),
			lipgloss.NewStyle().Bold(true).Render(humanize.Comma(int64(s.TotalTasks))),
			styles.WarningTextStyle.Render(humanize.Comma(int64(s.Duplicates))),
			styles.InfoTextStyle.Render(humanize.Bytes(uint64(max(s.TotalBytes, 0)))),
		),
		"",
		"  " + components.NewQuotaBar().View("Succeeded", s.TotalSucceeded, s.TotalRequests, width-8),
	}
	return card(width, "▤", "Archive Summary", rows)
}

func (m *Model) renderDailyChart() string {
	width := m.cardWidth()
	daily := m.archive.daily

	var rows []string
	if len(daily) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No daily data available"))
		return card(width, "▁", "Daily Requests", rows)
	}

	requests := make([]float64, len(daily))
	succeeded := make([]float64, len(daily))
	for i, d := range daily {
		requests[i] = float64(d.Requests)
		succeeded[i] = float64(d.Succeeded)
	}

	caption := fmt.Sprintf("%s to %s",
		daily[0].Date.Format("Jan 2"),
		daily[len(daily)-1].Date.Format("Jan 2"),
	)
	chart := components.RenderDualLineChart(requests, succeeded, max(width-12, 30), 8, caption)
	rows = append(rows, indent(chart)...)
	rows = append(rows, "", "  "+components.RenderLegend([]components.LegendItem{
		{Label: "Requests", Color: components.ChartRequestsColor},
		{Label: "Succeeded", Color: components.ChartSucceededColor},
	}))

	return card(width, "▁", "Daily Requests", rows)
}

func (m *Model) renderHourlyHeatmap() string {
	width := m.cardWidth()
	hourly := m.archive.hourly

	var rows []string
	if len(hourly) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No hourly data available"))
		return card(width, "◷", "Hourly Pattern", rows)
	}

	counts := make([]float64, models.HoursPerDay)
	peak, peakVal := 0, 0
	for _, h := range hourly {
		if models.ValidHour(h.Hour) {
			counts[h.Hour] = float64(h.Requests)
			if h.Requests > peakVal {
				peak, peakVal = h.Hour, h.Requests
			}
		}
	}

	var enabled func(int) bool
	if snap := m.state.GetSnapshot(); snap != nil {
		enabled = snap.HourEnabled
	}

	rows = append(rows,
		"  "+components.RenderHourlyHeatmap(counts, enabled),
		"",
		fmt.Sprintf("  Peak: %s (%d requests)",
			lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).
				Render(fmt.Sprintf("%02d:00-%02d:00", peak, (peak+1)%24)),
			peakVal,
		),
	)
	return card(width, "◷", "Hourly Pattern", rows)
}

func (m *Model) renderRecentTasks() string {
	width := m.cardWidth()
	recent := m.archive.recent

	var rows []string
	if len(recent) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  No archived tasks"))
		return card(width, "▣", "Recent Tasks", rows)
	}

	header := fmt.Sprintf("  %-10s %-10s %-10s %9s  %s", "WHEN", "TYPE", "STATUS", "SIZE", "URL")
	rows = append(rows, styles.TableHeaderStyle.Render(header))

	urlWidth := max(width-56, 20)
	for _, t := range recent {
		url := t.URL
		if len(url) > urlWidth {
			url = url[:urlWidth-1] + "…"
		}
		size := "-"
		if t.Bytes > 0 {
			size = humanize.Bytes(uint64(t.Bytes))
		}
		rows = append(rows, fmt.Sprintf("  %-10s %s %s %9s  %s",
			humanize.Time(t.CreatedAt),
			lipgloss.NewStyle().Foreground(styles.GetMediaColor(t.MediaType)).Width(10).Render(t.MediaType.String()),
			styles.GetStatusStyle(t.Status).Width(10).Render(string(t.Status)),
			size,
			url,
		))
	}
	return card(width, "▣", "Recent Tasks", rows)
}

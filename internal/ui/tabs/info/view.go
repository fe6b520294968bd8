package info

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/ui/styles"
	"github.com/j-veylop/mediagate/internal/version"
)

// View implements app.Tab.
func (m *Model) View() string {
	m.refreshContent()
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderContent() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.renderPathsCard(),
		m.renderLimitsCard(),
		m.renderAboutCard(),
	)
}

func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration and build information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 100)
}

func (m *Model) renderCard(title string, rows []string) string {
	body := append([]string{styles.CardTitleStyle.Render(title), ""}, rows...)
	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, body...),
	)
}

func (m *Model) renderPathsCard() string {
	if m.config == nil {
		return m.renderCard("Paths", []string{styles.HelpStyle.Render("Configuration not loaded")})
	}

	c := m.config
	return m.renderCard("Paths", []string{
		renderConfigRow("Quota State", c.QuotaStatePath),
		renderConfigRow("Archive", orNone(c.DatabasePath)),
		renderConfigRow("Downloads", c.DownloadDir),
		renderConfigRow("User Agents", orDefault(c.UserAgentsPath)),
		renderConfigRow("ffmpeg", c.FFmpegPath),
		renderConfigRow("Log File", orNone(c.LogFile)),
	})
}

func (m *Model) renderLimitsCard() string {
	if m.config == nil {
		return m.renderCard("Limits", []string{styles.HelpStyle.Render("Configuration not loaded")})
	}

	c := m.config
	segmentRate := "unlimited"
	if c.HLSSegmentRate > 0 {
		segmentRate = fmt.Sprintf("%.1f/s", c.HLSSegmentRate)
	}

	rows := []string{
		renderConfigRow("Monthly Limit", strconv.Itoa(c.MonthlyLimit)),
		renderConfigRow("Derived Daily", strconv.Itoa(models.DeriveDailyLimit(c.MonthlyLimit))),
	}
	if snap := m.state.GetSnapshot(); snap != nil && snap.ManualDailyLimit != nil {
		rows = append(rows, renderConfigRow("Manual Daily", styles.ManualLimitStyle.Render(strconv.Itoa(*snap.ManualDailyLimit))))
	}
	rows = append(rows,
		renderConfigRow("Concurrency", strconv.Itoa(c.MaxConcurrentDownloads)),
		renderConfigRow("Fetch Attempts", strconv.Itoa(c.FetchMaxAttempts)),
		renderConfigRow("Retry Delay", c.FetchRetryDelay.String()),
		renderConfigRow("Timeouts", fmt.Sprintf("connect %s, read %s", c.FetchConnectTimeout, c.FetchReadTimeout)),
		renderConfigRow("HLS Segments", segmentRate),
		renderConfigRow("Notifications", strconv.FormatBool(c.DesktopNotifications)),
	)
	return m.renderCard("Limits", rows)
}

func (m *Model) renderAboutCard() string {
	rows := []string{
		renderConfigRow("Version", version.GetVersion()),
		renderConfigRow("Build Date", version.GetDate()),
		renderConfigRow("Git Commit", version.GetCommit()),
		renderConfigRow("Go Version", runtime.Version()),
		renderConfigRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
		"",
	}

	stats := m.state.GetStats()
	rows = append(rows, fmt.Sprintf("Requests: %s", styles.InfoTextStyle.Render(strconv.Itoa(stats.TotalRequests))))

	return m.renderCard("About mediagate", rows)
}

// renderConfigRow renders a configuration key-value row.
func renderConfigRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "(built-in)"
	}
	return s
}

package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// Styles defines the application chrome styles.
type Styles struct {
	TabBar      lipgloss.Style
	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	StatusBar   lipgloss.Style

	NotificationSuccess lipgloss.Style
	NotificationError   lipgloss.Style
	NotificationWarning lipgloss.Style
	NotificationInfo    lipgloss.Style

	Content   lipgloss.Style
	Toast     lipgloss.Style
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles returns the default application styles.
func DefaultStyles() Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	success := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warning := lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#FF8C00"}
	errorColor := lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"}
	info := lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#5FAFFF"}

	return Styles{
		TabBar: lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).BorderForeground(subtle),
		ActiveTab:   lipgloss.NewStyle().Bold(true).Foreground(highlight).Padding(0, 2),
		InactiveTab: lipgloss.NewStyle().Foreground(subtle).Padding(0, 2),
		StatusBar:   lipgloss.NewStyle().Foreground(subtle).Padding(0, 1),

		NotificationSuccess: lipgloss.NewStyle().Foreground(success).Padding(0, 1),
		NotificationError:   lipgloss.NewStyle().Foreground(errorColor).Bold(true).Padding(0, 1),
		NotificationWarning: lipgloss.NewStyle().Foreground(warning).Padding(0, 1),
		NotificationInfo:    lipgloss.NewStyle().Foreground(info).Padding(0, 1),

		Content:   lipgloss.NewStyle().Padding(1, 2),
		Toast:     styles.ToastStyle,
		Title:     lipgloss.NewStyle().Bold(true).Foreground(highlight),
		Subtle:    lipgloss.NewStyle().Foreground(subtle),
		Highlight: lipgloss.NewStyle().Foreground(highlight),
	}
}

// View renders the application UI.
func (m *Model) View() string {
	var b strings.Builder

	if m.width > 0 {
		b.WriteString(m.renderNavbar())
		b.WriteString("\n")
	}

	if !m.ready {
		b.WriteString(m.styles.Content.Render(m.spinner.View() + " Loading..."))
		return b.String()
	}

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		b.WriteString(m.tabs[m.activeTab].View())
	} else {
		b.WriteString(m.renderPlaceholder())
	}

	mainView := b.String()

	if m.showHelp {
		mainView = m.overlayCentered(mainView, m.renderHelp())
	}

	if toasts := m.renderNotifications(); len(toasts) > 0 {
		return m.overlayToasts(mainView, toasts)
	}

	return mainView
}

// staleAfter is how many missed refresh intervals mark the quota view stale.
const staleAfter = 3

// renderNavbar renders the tab names with the budget status right-aligned.
func (m *Model) renderNavbar() string {
	tabs := make([]string, 0, tabCount)
	for id := range tabCount {
		if id == m.activeTab {
			tabs = append(tabs, m.styles.ActiveTab.Render(fmt.Sprintf("[%d] %s", id+1, id)))
		} else {
			tabs = append(tabs, m.styles.InactiveTab.Render(fmt.Sprintf(" %d  %s", id+1, id)))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if status := m.renderBudgetStatus(); status != "" {
		gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(status) - 2
		if gap > 0 {
			tabBar = tabBar + strings.Repeat(" ", gap) + status
		}
	}

	return m.styles.TabBar.Width(m.width).Render(tabBar)
}

// renderBudgetStatus summarizes the remaining budget for the navbar, or
// returns "" before the first quota load.
func (m *Model) renderBudgetStatus() string {
	if m.state.GetSnapshot() == nil {
		return ""
	}

	r := m.state.GetRemaining()
	daily := styles.GetQuotaStyle(r.DailyPercent(), r.Daily == 0).
		Render(fmt.Sprintf("%d/%d today", r.Daily, r.DailyLimit))
	monthly := styles.GetQuotaStyle(r.MonthlyPercent(), r.Monthly == 0).
		Render(fmt.Sprintf("%d/%d month", r.Monthly, r.MonthlyLimit))

	hour := styles.SuccessTextStyle.Render(fmt.Sprintf("%02d:00 open", r.CurrentHour))
	if !r.HourEnabled {
		hour = styles.ErrorTextStyle.Render(fmt.Sprintf("%02d:00 closed", r.CurrentHour))
	}

	status := daily + "  " + monthly + "  " + hour
	if age := m.state.TimeSinceUpdate(); age > staleAfter*m.refreshInterval {
		status += "  " + styles.WarningTextStyle.Render("updated "+humanize.Time(time.Now().Add(-age)))
	}
	return m.styles.StatusBar.Render(status)
}

func (m *Model) overlayCentered(mainView string, overlay string) string {
	mainLines := strings.Split(mainView, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayWidth := lipgloss.Width(overlay)
	y := max((m.height-len(overlayLines))/2, 0)
	x := max((m.width-overlayWidth)/2, 0)

	for i, overlayLine := range overlayLines {
		mainY := y + i
		if mainY >= len(mainLines) {
			break
		}

		mainLine := mainLines[mainY]
		left := ansi.Truncate(mainLine, x, "")
		right := ansi.TruncateLeft(mainLine, x+overlayWidth, "")

		if w := lipgloss.Width(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		mainLines[mainY] = left + overlayLine + right
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.GetNotifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = m.styles.NotificationSuccess, "[OK]"
		case NotificationError:
			style, prefix = m.styles.NotificationError, "[ERR]"
		case NotificationWarning:
			style, prefix = m.styles.NotificationWarning, "[WARN]"
		case NotificationInfo:
			style, prefix = m.styles.NotificationInfo, "[INFO]"
		case NotificationLoading:
			style, prefix = m.styles.NotificationInfo, m.spinner.View()
		}

		toasts = append(toasts, m.styles.Toast.Render(style.Render(prefix+" "+n.Message)))
	}

	return toasts
}

// overlayToasts draws the toast stack in the top-right corner, below the navbar.
func (m *Model) overlayToasts(mainView string, toasts []string) string {
	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	startX := max(m.width-lipgloss.Width(toastStack)-2, 0)
	const startY = 2

	for i, toastLine := range toastLines {
		lineIdx := startY + i
		if lineIdx >= len(mainLines) {
			break
		}

		mainLine := mainLines[lineIdx]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[lineIdx] = mainLine + strings.Repeat(" ", startX-w) + toastLine
		} else {
			mainLines[lineIdx] = ansi.Truncate(mainLine, startX, "") + toastLine
		}
	}

	return strings.Join(mainLines, "\n")
}

func (m *Model) renderHelp() string {
	lines := []string{m.styles.Title.Render("Keyboard Shortcuts"), ""}

	section := func(title string, rows ...string) {
		lines = append(lines, m.styles.Highlight.Render(title))
		for _, r := range rows {
			lines = append(lines, "  "+r)
		}
		lines = append(lines, "")
	}

	section("Navigation",
		"1-3        Switch tabs",
		"Tab        Next tab",
		"Shift+Tab  Previous tab",
	)
	section("Actions",
		"r          Refresh quota and archive",
		"?          Toggle help",
		"q/Ctrl+C   Quit",
	)

	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var rows []string
		for _, binding := range m.tabs[m.activeTab].ShortHelp() {
			rows = append(rows, fmt.Sprintf("%-10s %s", binding.Help().Key, binding.Help().Desc))
		}
		if len(rows) > 0 {
			section(m.activeTab.String()+" Tab", rows...)
		}
	}

	lines = append(lines, m.styles.Subtle.Render("Press ? or Esc to close"))

	return styles.HelpPanelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderPlaceholder() string {
	content := fmt.Sprintf("%s\n\n%s",
		m.activeTab,
		m.styles.Subtle.Render("No view is attached to this tab."),
	)
	return m.styles.Content.Render(content)
}

// Package styles holds the palette and the lipgloss styles shared by the tabs.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/models"
)

// Palette, as 256-color codes.
var (
	Primary   = lipgloss.Color("205")
	Secondary = lipgloss.Color("63")
	Subtle    = lipgloss.Color("240")

	Image  = lipgloss.Color("208")
	Video  = lipgloss.Color("39")
	Stream = lipgloss.Color("141")

	Success = lipgloss.Color("42")
	Error   = lipgloss.Color("196")
	Warning = lipgloss.Color("220")
	Info    = lipgloss.Color("39")

	BgDark   = lipgloss.Color("235")
	BgLight  = lipgloss.Color("237")
	BgAccent = lipgloss.Color("236")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	// ToastStyle frames notifications drawn over the content.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// TableHeaderStyle styles table headers.
var TableHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary)

// ManualLimitStyle marks a daily limit set by hand.
var ManualLimitStyle = lipgloss.NewStyle().
	Foreground(Secondary).
	Bold(true)

// Hour grid cells.
var (
	HourEnabledStyle = lipgloss.NewStyle().
				Foreground(Success).
				Background(BgAccent).
				Padding(0, 1)

	HourDisabledStyle = lipgloss.NewStyle().
				Foreground(TextMuted).
				Background(BgDark).
				Padding(0, 1)

	HourCurrentStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true)

	HourCursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(Primary).
			Bold(true).
			Padding(0, 1)
)

// Text colored by outcome.
var (
	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// Remaining-budget levels, from plenty to none.
var (
	quotaHigh      = lipgloss.NewStyle().Foreground(Success)
	quotaMedium    = lipgloss.NewStyle().Foreground(Warning)
	quotaLow       = lipgloss.NewStyle().Foreground(Error)
	quotaExhausted = lipgloss.NewStyle().Foreground(Error).Bold(true).Italic(true)
)

// GetQuotaStyle picks the style for a remaining percentage: above 50 is high,
// above 20 medium, the rest low.
func GetQuotaStyle(percent float64, exhausted bool) lipgloss.Style {
	switch {
	case exhausted:
		return quotaExhausted
	case percent > 50:
		return quotaHigh
	case percent > 20:
		return quotaMedium
	default:
		return quotaLow
	}
}

var projectionStyles = map[models.ProjectionStatus]lipgloss.Style{
	models.ProjectionSafe:     lipgloss.NewStyle().Foreground(Success),
	models.ProjectionWarning:  lipgloss.NewStyle().Foreground(Warning).Bold(true),
	models.ProjectionCritical: lipgloss.NewStyle().Foreground(Error).Bold(true),
}

// GetProjectionStyle returns the badge style for a forecast status.
func GetProjectionStyle(status models.ProjectionStatus) lipgloss.Style {
	if st, ok := projectionStyles[status]; ok {
		return st
	}
	return lipgloss.NewStyle().Foreground(Subtle)
}

// GetStatusStyle returns the style for a media task status.
func GetStatusStyle(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.TaskCompleted:
		return SuccessTextStyle
	case models.TaskFailed:
		return ErrorTextStyle
	case models.TaskDuplicate:
		return WarningTextStyle
	default:
		return HelpStyle
	}
}

// GetMediaColor returns the accent color of a media type.
func GetMediaColor(t models.MediaType) lipgloss.Color {
	switch t {
	case models.MediaImage:
		return Image
	case models.MediaVideo:
		return Video
	case models.MediaHLSVideo:
		return Stream
	default:
		return Subtle
	}
}

// CenterBoth centers content in a width by height box.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}

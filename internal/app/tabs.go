package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// TabID identifies a tab by its position in the navbar.
type TabID int

const (
	// TabDashboard shows the budget, the hour schedule and the last batch.
	TabDashboard TabID = iota
	// TabHistory shows recent requests and the archive.
	TabHistory
	// TabInfo shows configuration and build information.
	TabInfo

	tabCount
)

// Next returns the tab to the right, wrapping around.
func (t TabID) Next() TabID {
	return (t + 1) % tabCount
}

// Prev returns the tab to the left, wrapping around.
func (t TabID) Prev() TabID {
	return (t - 1 + tabCount) % tabCount
}

// String returns the navbar label.
func (t TabID) String() string {
	switch t {
	case TabDashboard:
		return "Dashboard"
	case TabHistory:
		return "History"
	case TabInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Tab is one screen of the dashboard. Only the active tab receives messages;
// a TabSwitchMsg tells it that it has just become active.
type Tab interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Tab, tea.Cmd)
	View() string
	SetSize(width, height int)

	// ShortHelp lists the tab's own bindings for the help overlay.
	ShortHelp() []key.Binding
	FullHelp() [][]key.Binding
}

// Package app implements the main Bubble Tea application with tab-based navigation.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/services"
	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// DefaultRefreshInterval is how often the quota view is reloaded when the
// configuration does not say otherwise.
const DefaultRefreshInterval = 5 * time.Second

// Model is the main application model.
type Model struct {
	lastLoad time.Time

	state    *State
	services *services.Manager
	commands *Commands

	eventChannel chan services.ServiceEvent

	tabs    []Tab
	keymap  KeyMap
	styles  Styles
	spinner spinner.Model

	refreshInterval time.Duration
	activeTab       TabID
	width           int
	height          int
	showHelp        bool
	ready           bool
}

// NewModel initializes a new application model. mgr may be nil, in which case
// the model renders without data.
func NewModel(mgr *services.Manager) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	interval := DefaultRefreshInterval
	if mgr != nil && mgr.Config() != nil && mgr.Config().RefreshInterval > 0 {
		interval = mgr.Config().RefreshInterval
	}

	return &Model{
		activeTab:       TabDashboard,
		tabs:            make([]Tab, tabCount),
		state:           NewState(),
		services:        mgr,
		commands:        NewCommands(mgr),
		keymap:          DefaultKeyMap(),
		styles:          DefaultStyles(),
		spinner:         s,
		refreshInterval: interval,
	}
}

// SetTabs sets the tabs for the model, in TabID order.
func (m *Model) SetTabs(tabs []Tab) {
	m.tabs = tabs
	if m.width > 0 && m.height > 0 {
		m.updateTabSizes()
	}
}

// GetState returns the application state.
func (m *Model) GetState() *State {
	return m.state
}

// GetCommands returns the commands helper.
func (m *Model) GetCommands() *Commands {
	return m.commands
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.state.SetLoadingNotification("Loading quota...")

	cmds := []tea.Cmd{
		m.spinner.Tick,
		defaultTickCmd(),
	}

	if m.services != nil {
		cmds = append(cmds, subscribeToServicesCmd(m.services), loadQuotaCmd(m.services))
	}

	for _, tab := range m.tabs {
		if tab != nil {
			cmds = append(cmds, tab.Init())
		}
	}

	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateTabSizes()
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	default:
		cmds = append(cmds, m.handleAppMsg(msg)...)
	}

	cmds = append(cmds, m.updateActiveTab(msg))

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAppMsg(msg tea.Msg) []tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		return m.handleTick(msg)
	case SubscriptionEventMsg:
		m.eventChannel = msg.Channel
		return []tea.Cmd{waitForServiceEventCmd(m.eventChannel)}
	case ServiceEventMsg:
		cmds := []tea.Cmd{m.handleServiceEvent(msg.Event)}
		if m.eventChannel != nil {
			cmds = append(cmds, waitForServiceEventCmd(m.eventChannel))
		}
		return cmds
	case QuotaLoadedMsg:
		m.handleQuotaLoaded(msg)
	case QuotaActionMsg:
		return m.handleQuotaAction(msg)
	case AddNotificationMsg:
		id := m.state.AddNotification(msg.Type, msg.Message, msg.Duration)
		if msg.Duration > 0 {
			return []tea.Cmd{clearNotificationCmd(id, msg.Duration)}
		}
	case RemoveNotificationMsg:
		m.state.RemoveNotification(msg.ID)
	case ClearExpiredNotificationsMsg:
		m.state.ClearExpiredNotifications()
	case StartLoadingMsg:
		m.state.SetLoading(msg.Resource, true)
		m.state.SetLoadingNotification("Refreshing " + msg.Resource + "...")
	case RefreshMsg:
		return m.handleRefresh(msg)
	case TabSwitchMsg:
		m.activeTab = msg.Tab
		m.updateTabSizes()
	}
	return nil
}

// handleTick expires notifications and reloads the quota view once the
// refresh interval has passed, so hour and day boundaries show up without
// any quota event.
func (m *Model) handleTick(msg TickMsg) []tea.Cmd {
	m.state.ClearExpiredNotifications()
	cmds := []tea.Cmd{defaultTickCmd()}

	if m.services != nil && msg.Time.Sub(m.lastLoad) >= m.refreshInterval {
		m.lastLoad = msg.Time
		cmds = append(cmds, loadQuotaCmd(m.services))
	}
	return cmds
}

func (m *Model) handleQuotaLoaded(msg QuotaLoadedMsg) {
	m.lastLoad = time.Now()
	m.state.SetLoading(ResourceInitial, false)
	m.state.SetLoading(ResourceQuota, false)
	m.state.SetQuota(msg.Remaining, msg.Stats, msg.Snapshot)
	if msg.Projection != nil {
		m.state.SetProjection(msg.Projection)
	}
	if !m.state.AnyLoading() {
		m.state.ClearLoadingNotification()
	}
}

func (m *Model) handleQuotaAction(msg QuotaActionMsg) []tea.Cmd {
	var cmds []tea.Cmd
	if msg.Error != nil {
		cmds = append(cmds, notifyErrorCmd(fmt.Sprintf("%s failed: %v", msg.Action, msg.Error)))
	} else {
		cmds = append(cmds, notifySuccessCmd(msg.Action))
	}
	if m.services != nil {
		cmds = append(cmds, loadQuotaCmd(m.services))
	}
	return cmds
}

// handleRefresh reloads the quota view. The archive is reloaded by the
// History tab, which receives the same message.
func (m *Model) handleRefresh(msg RefreshMsg) []tea.Cmd {
	if m.services == nil {
		return nil
	}

	switch msg.Resource {
	case ResourceAll, ResourceQuota:
		return []tea.Cmd{startLoadingCmd(ResourceQuota), loadQuotaCmd(m.services)}
	}
	return nil
}

func (m *Model) handleServiceEvent(event services.ServiceEvent) tea.Cmd {
	switch e := event.(type) {
	case services.QuotaChangedEvent:
		m.state.SetQuota(e.Remaining, e.Stats, m.state.GetSnapshot())
		cmds := []tea.Cmd{func() tea.Msg { return QuotaChangedMsg{Reloaded: e.Reloaded} }}
		if e.Reloaded {
			cmds = append(cmds, notifyInfoCmd("Quota file changed on disk, reloaded"))
		}
		if m.services != nil {
			cmds = append(cmds, loadQuotaCmd(m.services))
		}
		return tea.Batch(cmds...)

	case services.BatchCompletedEvent:
		m.state.SetLastBatch(e.Batch)
		return func() tea.Msg { return BatchCompletedMsg{Batch: e.Batch} }

	case services.BatchDeniedEvent:
		return notifyWarningCmd("Batch denied: " + e.Reason)

	case services.ErrorEvent:
		return notifyErrorCmd(fmt.Sprintf("[%s] %v", e.Service, e.Error))
	}

	return nil
}

func (m *Model) updateActiveTab(msg tea.Msg) tea.Cmd {
	if int(m.activeTab) < len(m.tabs) && m.tabs[m.activeTab] != nil {
		var cmd tea.Cmd
		m.tabs[m.activeTab], cmd = m.tabs[m.activeTab].Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) updateTabSizes() {
	contentHeight := max(0, m.height-5)

	for _, tab := range m.tabs {
		if tab != nil {
			tab.SetSize(m.width, contentHeight)
		}
	}
}

// switchTab activates a tab and tells it so.
func (m *Model) switchTab(id TabID) tea.Cmd {
	m.activeTab = id
	m.updateTabSizes()
	return func() tea.Msg { return TabSwitchMsg{Tab: id} }
}

// handleKeyMsg handles the global keys. Every key also reaches the active tab.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keymap.Escape):
		m.showHelp = false

	case key.Matches(msg, m.keymap.Tab1):
		return m.switchTab(TabDashboard)

	case key.Matches(msg, m.keymap.Tab2):
		return m.switchTab(TabHistory)

	case key.Matches(msg, m.keymap.Tab3):
		return m.switchTab(TabInfo)

	case key.Matches(msg, m.keymap.NextTab):
		if !m.showHelp {
			return m.switchTab(m.activeTab.Next())
		}

	case key.Matches(msg, m.keymap.PrevTab):
		if !m.showHelp {
			return m.switchTab(m.activeTab.Prev())
		}

	case key.Matches(msg, m.keymap.Refresh):
		return func() tea.Msg { return RefreshMsg{Resource: ResourceAll} }
	}

	return nil
}

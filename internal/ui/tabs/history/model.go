// Package history implements the History tab: the recent request ring from
// the quota document and charts over the SQLite archive.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mediagate/internal/app"
	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/services"
)

const recentTaskLimit = 10

type keyMap struct {
	ToggleRange key.Binding
	Up          key.Binding
	Down        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// archiveData is one load of the archive for a time range.
type archiveData struct {
	summary   *models.ArchiveSummary
	daily     []models.DailyRequestPoint
	hourly    []models.HourlyPattern
	recent    []models.MediaTaskRecord
	timeRange models.TimeRange
}

// HasData reports whether the archive holds anything for the range.
func (d *archiveData) HasData() bool {
	return d != nil && d.summary != nil && (d.summary.TotalRequests > 0 || d.summary.TotalTasks > 0)
}

// archiveLoadedMsg is the result of the load numbered seq. Either data or err
// is set.
type archiveLoadedMsg struct {
	data *archiveData
	err  error
	seq  int
}

var errNoServices = errors.New("services not initialized")

// Model is the History tab: the in-memory request ring, which needs nothing
// but the shared state, and the archive, which is loaded asynchronously.
type Model struct {
	state    *app.State
	services *services.Manager
	keys     keyMap
	viewport viewport.Model
	width    int
	height   int

	timeRange models.TimeRange
	archive   *archiveData
	loadedAt  time.Time
	err       error
	// seq numbers archive loads; only the newest result is applied.
	seq     int
	loading bool
}

// New creates the History tab. svc may be nil, in which case only the
// request ring is shown.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:     state,
		services:  svc,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.TimeRange7Days,
	}
}

// Init starts the first archive load.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) archiveEnabled() bool {
	return m.services != nil && m.services.Database() != nil
}

// load starts a fresh archive load for the selected range, superseding any
// load in flight.
func (m *Model) load() tea.Cmd {
	if !m.archiveEnabled() {
		return nil
	}
	m.seq++
	m.loading = true
	return loadArchiveCmd(m.services, m.timeRange, m.seq)
}

// reload is load unless one is already in flight for the same range.
func (m *Model) reload() tea.Cmd {
	if m.loading {
		return nil
	}
	return m.load()
}

func loadArchiveCmd(svc *services.Manager, tr models.TimeRange, seq int) tea.Cmd {
	return func() tea.Msg {
		data, err := loadArchive(svc, tr)
		return archiveLoadedMsg{data: data, err: err, seq: seq}
	}
}

func loadArchive(svc *services.Manager, tr models.TimeRange) (*archiveData, error) {
	if svc == nil {
		return nil, errNoServices
	}

	data := &archiveData{timeRange: tr}
	var err error
	if data.summary, err = svc.ArchiveSummary(tr); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if data.daily, err = svc.DailyRequests(tr); err != nil {
		return nil, fmt.Errorf("daily requests: %w", err)
	}
	if data.hourly, err = svc.HourlyPattern(tr); err != nil {
		return nil, fmt.Errorf("hourly pattern: %w", err)
	}
	if data.recent, err = svc.RecentTasks(recentTaskLimit); err != nil {
		return nil, fmt.Errorf("recent tasks: %w", err)
	}
	return data, nil
}

// Update implements app.Tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case archiveLoadedMsg:
		return m, m.applyLoad(msg)

	case app.BatchCompletedMsg:
		return m, m.reload()

	case app.RefreshMsg:
		if msg.Resource == app.ResourceAll || msg.Resource == app.ResourceArchive {
			return m, m.reload()
		}

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory && m.archive == nil {
			return m, m.reload()
		}

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ToggleRange) {
			m.timeRange = m.timeRange.Next()
			return m, m.load()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyLoad(msg archiveLoadedMsg) tea.Cmd {
	if msg.seq != m.seq {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		m.err = msg.err
		return func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  "History error: " + msg.err.Error(),
				Duration: app.LongNotificationDuration,
			}
		}
	}
	m.archive = msg.data
	m.loadedAt = time.Now()
	m.err = nil
	return nil
}

// TimeRange returns the selected archive range.
func (m *Model) TimeRange() models.TimeRange {
	return m.timeRange
}

// SetSize implements app.Tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp implements app.Tab.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{m.keys.ToggleRange}
}

// FullHelp implements app.Tab.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange},
		{m.keys.Up, m.keys.Down},
	}
}

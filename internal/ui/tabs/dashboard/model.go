// Package dashboard provides the budget and schedule tab.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mediagate/internal/app"
	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/ui/components"
)

const (
	animDaily   = "daily"
	animMonthly = "monthly"

	limitStep = 5
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	NextHour          key.Binding
	PrevHour          key.Binding
	CurrentHour       key.Binding
	ToggleHour        key.Binding
	RaiseLimit        key.Binding
	LowerLimit        key.Binding
	ClearLimit        key.Binding
	ResetDailyUsage   key.Binding
	ResetMonthlyUsage key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextHour: key.NewBinding(
			key.WithKeys("]", "j", "down"),
			key.WithHelp("]/j", "next hour"),
		),
		PrevHour: key.NewBinding(
			key.WithKeys("[", "k", "up"),
			key.WithHelp("[/k", "prev hour"),
		),
		CurrentHour: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "current hour"),
		),
		ToggleHour: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "toggle hour"),
		),
		RaiseLimit: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "raise daily limit"),
		),
		LowerLimit: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "lower daily limit"),
		),
		ClearLimit: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear manual limit"),
		),
		ResetDailyUsage: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "reset daily usage"),
		),
		ResetMonthlyUsage: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "reset monthly usage"),
		),
	}
}

// AnimationState tracks the state of an animation.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	commands       *app.Commands
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	now            func() time.Time
	width          int
	height         int
	cursor         int
	animationFrame int
}

// New creates a new dashboard model. cmds may wrap a nil manager, in which
// case the mutation keys do nothing.
func New(state *app.State, cmds *app.Commands) *Model {
	return &Model{
		state:      state,
		commands:   cmds,
		spinner:    components.NewSpinner("Loading quota..."),
		keys:       defaultKeyMap(),
		cursor:     time.Now().Hour(),
		viewport:   viewport.New(0, 0),
		now:        time.Now,
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.StartLoadingMsg:
		cmds = append(cmds, animationTickCmd())

	case app.QuotaLoadedMsg, app.QuotaChangedMsg, app.RefreshMsg:
		m.syncAnimationTargets(m.now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating, pending := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	if animating || pending || m.state.AnyLoading() {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NextHour):
		m.cursor = (m.cursor + 1) % models.HoursPerDay
	case key.Matches(msg, m.keys.PrevHour):
		m.cursor = (m.cursor - 1 + models.HoursPerDay) % models.HoursPerDay
	case key.Matches(msg, m.keys.CurrentHour):
		m.cursor = m.now().Hour()
	case key.Matches(msg, m.keys.ToggleHour):
		snap := m.state.GetSnapshot()
		if snap == nil {
			return m.commands.NotifyWarning("Quota not loaded yet")
		}
		return m.commands.ToggleHour(m.cursor, !snap.HourEnabled(m.cursor))
	case key.Matches(msg, m.keys.RaiseLimit):
		return m.commands.AdjustDailyLimit(limitStep)
	case key.Matches(msg, m.keys.LowerLimit):
		return m.commands.AdjustDailyLimit(-limitStep)
	case key.Matches(msg, m.keys.ClearLimit):
		return m.commands.ClearDailyLimit()
	case key.Matches(msg, m.keys.ResetDailyUsage):
		return m.commands.ResetDailyUsage()
	case key.Matches(msg, m.keys.ResetMonthlyUsage):
		return m.commands.ResetMonthlyUsage()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// Cursor returns the selected hour.
func (m *Model) Cursor() int {
	return m.cursor
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

func (m *Model) syncAnimationTargets(now time.Time) (animating, pending bool) {
	if m.state.GetSnapshot() == nil {
		return false, true
	}

	r := m.state.GetRemaining()
	if m.updateAnimationState(animDaily, r.DailyPercent(), now) {
		animating = true
	}
	if m.updateAnimationState(animMonthly, r.MonthlyPercent(), now) {
		animating = true
	}
	return animating, false
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	if target < 0 {
		return false
	}

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{StartTime: now}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent != state.TargetPercent {
			elapsed := now.Sub(state.StartTime).Seconds()
			duration := 1.5

			if elapsed >= duration {
				state.CurrentPercent = state.TargetPercent
			} else {
				progress := elapsed / duration
				ease := 1.0 - (1.0-progress)*(1.0-progress)
				state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
			}
		}
	}
}

// displayPercent returns the animated value for key, or fallback before the
// first animation step.
func (m *Model) displayPercent(animKey string, fallback float64) float64 {
	if anim, ok := m.animations[animKey]; ok {
		return anim.CurrentPercent
	}
	return fallback
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextHour,
		m.keys.PrevHour,
		m.keys.ToggleHour,
		m.keys.RaiseLimit,
		m.keys.LowerLimit,
		m.keys.ClearLimit,
		m.keys.ResetDailyUsage,
		m.keys.ResetMonthlyUsage,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextHour, m.keys.PrevHour, m.keys.CurrentHour, m.keys.ToggleHour},
		{m.keys.RaiseLimit, m.keys.LowerLimit, m.keys.ClearLimit},
		{m.keys.ResetDailyUsage, m.keys.ResetMonthlyUsage},
	}
}

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/mediagate/internal/ui/styles"
)

// LoadingSpinner is a spinner followed by a label naming what is loading.
type LoadingSpinner struct {
	spinner  spinner.Model
	fallback string
	label    string
}

// NewSpinner creates a spinner. label is shown until SetResources names
// something more specific.
func NewSpinner(label string) LoadingSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return LoadingSpinner{
		spinner:  s,
		fallback: label,
		label:    label,
	}
}

// Init starts the spinner animation.
func (l LoadingSpinner) Init() tea.Cmd {
	return l.spinner.Tick
}

// Update advances the animation on spinner ticks.
func (l LoadingSpinner) Update(msg tea.Msg) (LoadingSpinner, tea.Cmd) {
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return l, cmd
}

// View renders the spinner and its label.
func (l LoadingSpinner) View() string {
	label := lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(l.label)
	return l.spinner.View() + " " + label
}

// SetResources relabels the spinner after the resources still loading. The
// "initial" marker is not a resource and is skipped.
func (l *LoadingSpinner) SetResources(resources []string) {
	named := make([]string, 0, len(resources))
	for _, r := range resources {
		if r != "initial" {
			named = append(named, r)
		}
	}
	if len(named) == 0 {
		l.label = l.fallback
		return
	}
	l.label = "Loading " + strings.Join(named, " and ") + "..."
}

// Label returns the current label.
func (l LoadingSpinner) Label() string {
	return l.label
}

// RenderSpinnerCentered renders a spinner centered in a given width and height.
func RenderSpinnerCentered(s LoadingSpinner, width, height int) string {
	return styles.CenterBoth(s.View(), width, height)
}

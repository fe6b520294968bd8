package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/mediagate/internal/services"
	"github.com/j-veylop/mediagate/internal/services/quota"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadQuotaCmd returns a command that loads the quota view.
func loadQuotaCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		remaining, stats := mgr.Status()
		snapshot := mgr.Quota().Snapshot()
		return QuotaLoadedMsg{
			Remaining:  remaining,
			Stats:      stats,
			Snapshot:   &snapshot,
			Projection: mgr.Projection(),
		}
	}
}

// quotaActionCmd runs a quota mutation off the update loop.
func quotaActionCmd(mgr *services.Manager, action string, fn func(*quota.Manager) error) tea.Cmd {
	return func() tea.Msg {
		return QuotaActionMsg{
			Action: action,
			Error:  fn(mgr.Quota()),
		}
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

func startLoadingCmd(resource string) tea.Cmd {
	return func() tea.Msg {
		return StartLoadingMsg{Resource: resource}
	}
}

func notifyCmd(t NotificationType, message string, d time.Duration) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     t,
			Message:  message,
			Duration: d,
		}
	}
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return notifyCmd(NotificationSuccess, message, DefaultNotificationDuration)
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return notifyCmd(NotificationError, message, LongNotificationDuration)
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return notifyCmd(NotificationWarning, message, DefaultNotificationDuration)
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return notifyCmd(NotificationInfo, message, QuickNotificationDuration)
}

// Commands gives tabs access to service commands. A nil manager turns every
// service command into nil.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// LoadQuota returns a command that loads the quota view.
func (c *Commands) LoadQuota() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return loadQuotaCmd(c.manager)
}

// ToggleHour enables or disables one hour of the schedule.
func (c *Commands) ToggleHour(hour int, enabled bool) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return quotaActionCmd(c.manager, fmt.Sprintf("Hour %02d:00 %s", hour, verb), func(q *quota.Manager) error {
		q.ToggleHour(hour, enabled)
		return nil
	})
}

// AdjustDailyLimit moves the manual daily limit by delta, starting from the
// effective limit. The result never drops below zero.
func (c *Commands) AdjustDailyLimit(delta int) tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return func() tea.Msg {
		q := c.manager.Quota()
		n := max(q.Remaining().DailyLimit+delta, 0)
		return QuotaActionMsg{
			Action: fmt.Sprintf("Daily limit set to %d", n),
			Error:  q.SetDailyLimit(n),
		}
	}
}

// ClearDailyLimit returns to the derived daily limit.
func (c *Commands) ClearDailyLimit() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return quotaActionCmd(c.manager, "Manual daily limit cleared", func(q *quota.Manager) error {
		q.ClearDailyLimit()
		return nil
	})
}

// ResetDailyUsage zeroes today's counter.
func (c *Commands) ResetDailyUsage() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return quotaActionCmd(c.manager, "Daily usage reset", func(q *quota.Manager) error {
		q.ResetDailyUsage()
		return nil
	})
}

// ResetMonthlyUsage zeroes this month's counter.
func (c *Commands) ResetMonthlyUsage() tea.Cmd {
	if c.manager == nil {
		return nil
	}
	return quotaActionCmd(c.manager, "Monthly usage reset", func(q *quota.Manager) error {
		q.ResetMonthlyUsage()
		return nil
	})
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

package app

import (
	"time"

	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// StartLoadingMsg signals that a resource is starting to load.
type StartLoadingMsg struct {
	Resource string
}

// QuotaLoadedMsg contains a fresh quota view.
type QuotaLoadedMsg struct {
	Snapshot   *models.QuotaState
	Projection *models.Projection
	Remaining  models.Remaining
	Stats      models.StatsSnapshot
}

// QuotaActionMsg is the result of a quota mutation started from the UI.
type QuotaActionMsg struct {
	Error  error
	Action string
}

// RefreshMsg requests a refresh of data.
type RefreshMsg struct {
	Resource string // ResourceAll, ResourceQuota or ResourceArchive
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Message  string
	Type     NotificationType
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// QuotaChangedMsg is forwarded to tabs when the quota view changed.
type QuotaChangedMsg struct {
	Reloaded bool
}

// BatchCompletedMsg is forwarded to tabs when an acquisition batch finished.
type BatchCompletedMsg struct {
	Batch *models.Batch
}

// TabSwitchMsg switches to a tab. The tab that becomes active receives it too.
type TabSwitchMsg struct {
	Tab TabID
}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

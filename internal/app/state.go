package app

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/mediagate/internal/models"
)

// NotificationType selects how a toast is styled.
type NotificationType int

// Notification types.
const (
	NotificationSuccess NotificationType = iota
	NotificationError
	NotificationWarning
	NotificationInfo
	// NotificationLoading is rendered with the spinner and never expires.
	NotificationLoading
)

const (
	// LoadingNotificationID is shared by every loading toast, so there is at
	// most one.
	LoadingNotificationID = "loading"

	maxNotifications = 10
)

// Loadable resources, in the order the spinner lists them. ResourceAll only
// appears in RefreshMsg.
const (
	ResourceAll     = "all"
	ResourceInitial = "initial"
	ResourceQuota   = "quota"
	ResourceArchive = "archive"
)

// Notification is a toast shown over the active tab.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
}

// IsExpired reports whether the toast has outlived its duration. Toasts
// without a duration stay until removed.
func (n *Notification) IsExpired() bool {
	return n.Duration > 0 && time.Since(n.CreatedAt) > n.Duration
}

// LoadingState has one flag per resource.
type LoadingState struct {
	Initial bool
	Quota   bool
	Archive bool
}

func (l *LoadingState) flag(resource string) *bool {
	switch resource {
	case ResourceInitial:
		return &l.Initial
	case ResourceQuota:
		return &l.Quota
	case ResourceArchive:
		return &l.Archive
	}
	return nil
}

// State is what the tabs render from. The root model writes it and tabs read
// it, always through the accessors.
type State struct {
	LastUpdated   time.Time
	Remaining     models.Remaining
	Stats         models.StatsSnapshot
	Snapshot      *models.QuotaState
	Projection    *models.Projection
	LastBatch     *models.Batch
	notifications []Notification
	Loading       LoadingState
	mu            sync.RWMutex
}

// NewState returns a state waiting for its first quota load.
func NewState() *State {
	return &State{Loading: LoadingState{Initial: true}}
}

// SetLoading marks a resource as loading or done. Unknown resources are
// ignored.
func (s *State) SetLoading(resource string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.Loading.flag(resource); f != nil {
		*f = loading
	}
}

// AnyLoading reports whether any resource is loading.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial || s.Loading.Quota || s.Loading.Archive
}

// IsInitialLoading reports whether the first quota load is still pending.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Loading.Initial
}

// GetLoadingResources lists the resources currently loading.
func (s *State) GetLoadingResources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resources []string
	for _, r := range []string{ResourceInitial, ResourceQuota, ResourceArchive} {
		if *s.Loading.flag(r) {
			resources = append(resources, r)
		}
	}
	return resources
}

// SetQuota stores a fresh quota view.
func (s *State) SetQuota(remaining models.Remaining, stats models.StatsSnapshot, snapshot *models.QuotaState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Remaining = remaining
	s.Stats = stats
	s.Snapshot = snapshot
	s.LastUpdated = time.Now()
}

// GetRemaining returns the remaining budget.
func (s *State) GetRemaining() models.Remaining {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Remaining
}

// GetStats returns the cumulative statistics.
func (s *State) GetStats() models.StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// GetSnapshot returns the quota document as last loaded, or nil before the
// first load.
func (s *State) GetSnapshot() *models.QuotaState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Snapshot
}

// SetProjection stores the latest budget forecast.
func (s *State) SetProjection(p *models.Projection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Projection = p
}

// GetProjection returns the latest budget forecast, or nil.
func (s *State) GetProjection() *models.Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Projection
}

// SetLastBatch records the most recent acquisition batch.
func (s *State) SetLastBatch(b *models.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastBatch = b
}

// GetLastBatch returns the most recent acquisition batch, or nil.
func (s *State) GetLastBatch() *models.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastBatch
}

// TimeSinceUpdate returns how long ago the quota view was loaded, or zero
// before the first load.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.LastUpdated.IsZero() {
		return 0
	}
	return time.Since(s.LastUpdated)
}

// AddNotification queues a toast and returns its ID. Only the newest
// maxNotifications are kept.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	})
	if over := len(s.notifications) - maxNotifications; over > 0 {
		s.notifications = slices.Delete(s.notifications, 0, over)
	}
	return id
}

// RemoveNotification drops a toast by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.ID == id
	})
}

// ClearExpiredNotifications drops every expired toast.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = slices.DeleteFunc(s.notifications, func(n Notification) bool {
		return n.IsExpired()
	})
}

// GetNotifications returns a copy of the unexpired toasts, oldest first.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	return active
}

// SetLoadingNotification shows message in the loading toast, creating it if
// needed.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.IndexFunc(s.notifications, func(n Notification) bool {
		return n.ID == LoadingNotificationID
	}); i >= 0 {
		s.notifications[i].Message = message
		return
	}
	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// ClearLoadingNotification removes the loading toast.
func (s *State) ClearLoadingNotification() {
	s.RemoveNotification(LoadingNotificationID)
}

// Package quota provides the persisted admission-control counter: daily and
// monthly request budgets gated by an hour-of-day schedule.
package quota

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
)

// Event represents a quota manager event.
type Event struct {
	Error error
	Type  EventType
}

// EventType defines the type of quota event.
type EventType int

const (
	// EventStateChanged indicates that a mutation or record changed the state.
	EventStateChanged EventType = iota
	// EventReloaded indicates that an external edit of the document was loaded.
	EventReloaded
	// EventPersistFailed indicates that the document could not be written.
	EventPersistFailed
	// EventWatchError indicates an error from the document watcher.
	EventWatchError
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now as the source of the current time. Hours and
// calendar dates are taken in the location of the returned time.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithWatch enables or disables reloading of external edits to the document.
// Watching is enabled by default.
func WithWatch(enabled bool) Option {
	return func(m *Manager) {
		m.watch = enabled
	}
}

// Manager owns the quota document and serializes every read and mutation of it.
type Manager struct {
	persistErr     error
	now            func() time.Time
	store          *Store
	watcher        *fsnotify.Watcher
	eventChan      chan Event
	stopChan       chan struct{}
	lastSaved      []byte
	state          models.QuotaState
	wg             sync.WaitGroup
	defaultMonthly int
	// reserved counts admitted requests not yet recorded. It is never
	// persisted.
	reserved       int
	mu             sync.Mutex
	closeOnce      sync.Once
	watch          bool
}

// New loads the quota document at path, creating it with defaults when it does
// not exist. monthlyLimit is the budget of a fresh document and the fallback
// for a document that lacks one.
func New(path string, monthlyLimit int, opts ...Option) (*Manager, error) {
	if path == "" {
		return nil, errors.New("quota document path is empty")
	}
	if monthlyLimit <= 0 {
		return nil, fmt.Errorf("invalid monthly limit: %d", monthlyLimit)
	}

	m := &Manager{
		now:            time.Now,
		store:          NewStore(path),
		eventChan:      make(chan Event, 100),
		stopChan:       make(chan struct{}),
		defaultMonthly: monthlyLimit,
		watch:          true,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create quota directory: %w", err)
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	if m.watch {
		if err := m.startWatcher(); err != nil {
			return nil, fmt.Errorf("failed to start file watcher: %w", err)
		}
	}

	return m, nil
}

// load reads the document or writes a fresh one.
func (m *Manager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	data, err := m.store.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read quota document: %w", err)
		}
		m.state = models.DefaultQuotaState(now, m.defaultMonthly)
		m.persistLocked()
		return nil
	}

	state, err := Decode(data, now, m.defaultMonthly)
	if err != nil {
		return err
	}
	m.state = state
	m.lastSaved = data
	return nil
}

// Path returns the document path.
func (m *Manager) Path() string {
	return m.store.Path()
}

// Events returns the event channel for subscribing to quota changes.
func (m *Manager) Events() <-chan Event {
	return m.eventChan
}

// CanAdmit reports whether a new request is permitted now. A denial carries a
// human-readable reason. Outstanding reservations count as usage.
func (m *Manager) CanAdmit() models.Admission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admitLocked()
}

// Reserve checks admission and, when allowed, holds one request against both
// budgets until the reservation is committed or released. The check and the
// hold happen under one lock, so concurrent callers cannot overshoot a limit.
// The reservation is nil on denial.
func (m *Manager) Reserve() (*Reservation, models.Admission) {
	m.mu.Lock()
	defer m.mu.Unlock()

	admission := m.admitLocked()
	if !admission.Allowed {
		return nil, admission
	}
	m.reserved++
	return &Reservation{m: m}, admission
}

func (m *Manager) admitLocked() models.Admission {
	now := m.now()
	m.rolloverAndPersistLocked(now)

	hour := now.Hour()
	if containsHour(m.state.DisabledHours, hour) {
		return models.Admission{Reason: fmt.Sprintf("hour %02d:00 is disabled", hour)}
	}
	if !containsHour(m.state.EnabledHours, hour) {
		return models.Admission{Reason: fmt.Sprintf("hour %02d:00 is not enabled", hour)}
	}

	if limit := m.state.EffectiveDailyLimit(); m.state.DailyUsage+m.reserved >= limit {
		return models.Admission{Reason: fmt.Sprintf("daily limit exceeded (%d)", limit)}
	}
	if m.state.MonthlyUsage+m.reserved >= m.state.MonthlyLimit {
		return models.Admission{Reason: fmt.Sprintf("monthly limit exceeded (%d)", m.state.MonthlyLimit)}
	}

	return models.Admission{Allowed: true}
}

// Reservation is one admitted request held by Reserve. Only the first call of
// Commit or Release has an effect.
type Reservation struct {
	m    *Manager
	once sync.Once
}

// Commit records the reserved request like Record.
func (r *Reservation) Commit(success bool) {
	r.once.Do(func() {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
		r.m.reserved--
		r.m.recordLocked(success)
	})
}

// Release gives the reserved request back without recording it.
func (r *Reservation) Release() {
	r.once.Do(func() {
		r.m.mu.Lock()
		r.m.reserved--
		r.m.mu.Unlock()
	})
}

// Record counts one request against both budgets regardless of success and
// appends it to the history ring. The document is written before returning.
func (m *Manager) Record(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(success)
}

func (m *Manager) recordLocked(success bool) {
	now := m.now()
	m.rolloverLocked(now)

	m.state.DailyUsage++
	m.state.MonthlyUsage++
	m.state.Stats.TotalRequests++
	if success {
		m.state.Stats.TotalAllowed++
	} else {
		m.state.Stats.TotalBlocked++
	}
	last := now
	m.state.Stats.LastRequestTime = &last

	m.state.RequestHistory = append(m.state.RequestHistory, models.RequestRecord{
		Timestamp: now,
		Hour:      now.Hour(),
		Success:   success,
	})
	if n := len(m.state.RequestHistory); n > models.HistoryCapacity {
		m.state.RequestHistory = append(m.state.RequestHistory[:0:0],
			m.state.RequestHistory[n-models.HistoryCapacity:]...)
	}

	m.commitLocked()
}

// SetDailyLimit sets the manual daily limit, which overrides the derived one
// until cleared.
func (m *Manager) SetDailyLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("invalid daily limit: %d", n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.ManualDailyLimit = &n
	m.commitLocked()
	return nil
}

// ClearDailyLimit removes the manual daily limit.
func (m *Manager) ClearDailyLimit() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.ManualDailyLimit = nil
	m.commitLocked()
}

// SetMonthlyLimit sets the monthly budget and re-derives the daily limit.
func (m *Manager) SetMonthlyLimit(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid monthly limit: %d", n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.MonthlyLimit = n
	m.state.DailyLimit = models.DeriveDailyLimit(n)
	m.commitLocked()
	return nil
}

// SetEnabledHours replaces the hour schedule. Out-of-range hours are ignored.
func (m *Manager) SetEnabledHours(hours []int) {
	enabled := models.NormalizeHours(hours)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.EnabledHours = enabled
	m.state.DisabledHours = models.ComplementHours(enabled)
	m.commitLocked()
}

// ToggleHour enables or disables a single hour. Out-of-range hours are a no-op.
func (m *Manager) ToggleHour(hour int, enabled bool) {
	if !models.ValidHour(hour) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hours := make([]int, 0, models.HoursPerDay)
	for _, h := range m.state.EnabledHours {
		if h != hour {
			hours = append(hours, h)
		}
	}
	if enabled {
		hours = append(hours, hour)
	}

	m.state.EnabledHours = models.NormalizeHours(hours)
	m.state.DisabledHours = models.ComplementHours(m.state.EnabledHours)
	m.commitLocked()
}

// ResetDailyUsage zeroes the daily counter.
func (m *Manager) ResetDailyUsage() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.DailyUsage = 0
	m.commitLocked()
}

// ResetMonthlyUsage zeroes the monthly counter.
func (m *Manager) ResetMonthlyUsage() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.MonthlyUsage = 0
	m.commitLocked()
}

// Remaining returns the budget left in the current day and month.
func (m *Manager) Remaining() models.Remaining {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.rolloverAndPersistLocked(now)

	limit := m.state.EffectiveDailyLimit()
	return models.Remaining{
		Daily:        max(0, limit-m.state.DailyUsage),
		Monthly:      max(0, m.state.MonthlyLimit-m.state.MonthlyUsage),
		DailyLimit:   limit,
		MonthlyLimit: m.state.MonthlyLimit,
		DailyUsage:   m.state.DailyUsage,
		MonthlyUsage: m.state.MonthlyUsage,
		CurrentHour:  now.Hour(),
		ManualLimit:  m.state.ManualDailyLimit != nil,
		HourEnabled:  m.state.HourEnabled(now.Hour()),
	}
}

// Stats returns the cumulative counters and an hour histogram of the history ring.
func (m *Manager) Stats() models.StatsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverAndPersistLocked(m.now())

	snap := models.StatsSnapshot{
		TotalRequests: m.state.Stats.TotalRequests,
		TotalAllowed:  m.state.Stats.TotalAllowed,
		TotalBlocked:  m.state.Stats.TotalBlocked,
		HistorySize:   len(m.state.RequestHistory),
	}
	if t := m.state.Stats.LastRequestTime; t != nil {
		last := *t
		snap.LastRequestTime = &last
	}
	for _, r := range m.state.RequestHistory {
		if models.ValidHour(r.Hour) {
			snap.HourlyCounts[r.Hour]++
		}
	}
	return snap
}

// Snapshot returns a deep copy of the full state.
func (m *Manager) Snapshot() models.QuotaState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverAndPersistLocked(m.now())
	return m.state.Clone()
}

// LastPersistError returns the error of the most recent failed write, or nil
// once a write succeeds again.
func (m *Manager) LastPersistError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistErr
}

// rolloverLocked zeroes the counters whose window has elapsed. It reports
// whether anything changed.
func (m *Manager) rolloverLocked(now time.Time) bool {
	changed := false

	if today := models.DateKey(now); m.state.LastResetDate != today {
		m.state.DailyUsage = 0
		m.state.LastResetDate = today
		changed = true
	}

	if month := models.MonthKey(now); m.state.CurrentMonth != month {
		m.state.MonthlyUsage = 0
		m.state.CurrentMonth = month
		changed = true
	}

	return changed
}

func (m *Manager) rolloverAndPersistLocked(now time.Time) {
	if m.rolloverLocked(now) {
		logger.Debug("quota rollover", "date", m.state.LastResetDate, "month", m.state.CurrentMonth)
		m.commitLocked()
	}
}

// commitLocked persists the state and notifies subscribers.
func (m *Manager) commitLocked() {
	m.persistLocked()
	m.sendEvent(Event{Type: EventStateChanged})
}

// persistLocked writes the document. Failures are logged and kept for
// LastPersistError; the in-memory state stays authoritative.
func (m *Manager) persistLocked() {
	data, err := m.store.Write(&m.state)
	if err != nil {
		logger.Warn("failed to persist quota state", "path", m.store.Path(), "error", err)
		m.persistErr = err
		m.sendEvent(Event{Type: EventPersistFailed, Error: err})
		return
	}
	m.persistErr = nil
	m.lastSaved = data
}

// sendEvent sends an event to the event channel non-blocking.
func (m *Manager) sendEvent(event Event) {
	select {
	case m.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-m.eventChan:
		default:
		}
		select {
		case m.eventChan <- event:
		default:
		}
	}
}

// Close stops the document watcher.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		if m.watcher != nil {
			err = m.watcher.Close()
		}
		m.wg.Wait()
	})
	return err
}

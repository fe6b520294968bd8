// Package services orchestrates quota admission and media acquisition for the
// dashboard and the command line.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/mediagate/internal/config"
	"github.com/j-veylop/mediagate/internal/db"
	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
	"github.com/j-veylop/mediagate/internal/services/media"
	"github.com/j-veylop/mediagate/internal/services/projection"
	"github.com/j-veylop/mediagate/internal/services/quota"
)

type (
	// QuotaChangedEvent is emitted when the quota state changes or is reloaded.
	QuotaChangedEvent struct {
		Remaining models.Remaining
		Stats     models.StatsSnapshot
		Reloaded  bool
	}

	// BatchDeniedEvent is emitted when admission is refused.
	BatchDeniedEvent struct {
		BatchID string
		Reason  string
	}

	// TaskFinishedEvent is emitted when a single media task ends.
	TaskFinishedEvent struct {
		Task models.MediaTask
	}

	// BatchCompletedEvent is emitted when an admitted batch has been recorded.
	BatchCompletedEvent struct {
		Batch *models.Batch
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (QuotaChangedEvent) isServiceEvent()   {}
func (BatchDeniedEvent) isServiceEvent()    {}
func (TaskFinishedEvent) isServiceEvent()   {}
func (BatchCompletedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()          {}

// Notifier shows a desktop notification.
type Notifier func(title, body string) error

func desktopNotify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier replaces the desktop notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notify = n
	}
}

// WithQuotaOptions passes options to the quota manager.
func WithQuotaOptions(opts ...quota.Option) Option {
	return func(m *Manager) {
		m.quotaOpts = append(m.quotaOpts, opts...)
	}
}

// WithProjectionOptions passes options to the budget forecast.
func WithProjectionOptions(opts ...projection.Option) Option {
	return func(m *Manager) {
		m.projOpts = append(m.projOpts, opts...)
	}
}

// WithoutArchive disables the SQLite archive.
func WithoutArchive() Option {
	return func(m *Manager) {
		m.noArchive = true
	}
}

// Manager owns the quota manager, the download pipeline and the archive, and
// routes their events to subscribers.
type Manager struct {
	quota         *quota.Manager
	database      *db.DB
	fetcher       *media.Fetcher
	reconstructor *media.Reconstructor
	projection    *projection.Service
	notify        Notifier
	cfg           *config.Config
	stopChan      chan struct{}
	subscribers   []chan<- ServiceEvent
	quotaOpts     []quota.Option
	projOpts      []projection.Option
	previous      models.Remaining
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closeOnce     sync.Once
	noArchive     bool
}

// NewManager creates a new service manager.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:      cfg,
		notify:   desktopNotify,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.quota, err = quota.New(cfg.QuotaStatePath, cfg.MonthlyLimit, m.quotaOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota: %w", err)
	}

	if !m.noArchive && cfg.DatabasePath != "" {
		m.database, err = db.New(cfg.DatabasePath)
		if err != nil {
			_ = m.quota.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	m.fetcher = media.NewFetcherFromConfig(cfg)
	m.reconstructor = media.NewReconstructorFromConfig(cfg, m.fetcher)
	m.projection = projection.New(m.database, m.projOpts...)
	m.previous = m.quota.Remaining()

	m.wg.Add(1)
	go m.routeEvents()

	return m, nil
}

// routeEvents routes events from the quota manager to subscribers.
func (m *Manager) routeEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.quota.Events():
			m.handleQuotaEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleQuotaEvent(event quota.Event) {
	switch event.Type {
	case quota.EventStateChanged, quota.EventReloaded:
		remaining := m.quota.Remaining()
		m.broadcast(QuotaChangedEvent{
			Remaining: remaining,
			Stats:     m.quota.Stats(),
			Reloaded:  event.Type == quota.EventReloaded,
		})
		m.checkNotifications(remaining)

	case quota.EventPersistFailed, quota.EventWatchError:
		m.broadcast(ErrorEvent{
			Service: "quota",
			Error:   event.Error,
		})
	}
}

// checkNotifications notifies when a budget crosses to exhausted or becomes
// available again.
func (m *Manager) checkNotifications(current models.Remaining) {
	m.mu.Lock()
	previous := m.previous
	m.previous = current
	m.mu.Unlock()

	if !m.cfg.DesktopNotifications || m.notify == nil {
		return
	}

	switch {
	case current.Monthly == 0 && previous.Monthly > 0:
		m.sendNotification("Monthly budget exhausted",
			fmt.Sprintf("All %d requests of this month are used.", current.MonthlyLimit))
	case current.Daily == 0 && previous.Daily > 0:
		m.sendNotification("Daily budget exhausted",
			fmt.Sprintf("All %d requests of today are used.", current.DailyLimit))
	case current.Daily > 0 && previous.Daily == 0 && current.Monthly > 0:
		m.sendNotification("Budget available", "Requests are admitted again.")
	}
}

func (m *Manager) sendNotification(title, body string) {
	if err := m.notify(title, body); err != nil {
		logger.Warn("failed to send notification", "title", title, "error", err)
	}
}

// Acquire runs one acquisition batch. A denied admission returns a batch with
// Admitted false and a reason; nothing is recorded. An admitted batch holds a
// quota reservation until it records exactly one request, successful when at
// least one file was kept, so concurrent batches cannot exceed a limit. Failed
// tasks do not stop the others. The caller owns the returned files.
func (m *Manager) Acquire(ctx context.Context, urls []string) (*models.Batch, error) {
	if len(urls) == 0 {
		return nil, errors.New("no URLs to acquire")
	}

	batch := &models.Batch{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	reservation, admission := m.quota.Reserve()
	if !admission.Allowed {
		batch.Reason = admission.Reason
		logger.Info("batch denied", "batch", batch.ID, "reason", admission.Reason)
		m.broadcast(BatchDeniedEvent{BatchID: batch.ID, Reason: admission.Reason})
		return batch, nil
	}
	batch.Admitted = true

	if err := os.MkdirAll(m.cfg.DownloadDir, 0750); err != nil {
		m.finish(batch, reservation)
		return batch, fmt.Errorf("failed to create download directory: %w", err)
	}

	for _, u := range urls {
		mediaType := media.Classify(u)
		id := uuid.NewString()
		batch.Tasks = append(batch.Tasks, &models.MediaTask{
			ID:        id,
			BatchID:   batch.ID,
			URL:       u,
			Type:      mediaType,
			Status:    models.TaskPending,
			Path:      filepath.Join(m.cfg.DownloadDir, id+media.Extension(u, mediaType)),
			CreatedAt: time.Now(),
		})
	}

	var g errgroup.Group
	g.SetLimit(max(1, m.cfg.MaxConcurrentDownloads))
	for _, task := range batch.Tasks {
		g.Go(func() error {
			m.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	m.dedupImages(batch)
	m.finish(batch, reservation)
	return batch, nil
}

// runTask downloads one task. Failures are stored on the task.
func (m *Manager) runTask(ctx context.Context, task *models.MediaTask) {
	start := time.Now()

	var err error
	switch task.Type {
	case models.MediaHLSVideo:
		_, err = m.reconstructor.Reconstruct(ctx, task.URL, task.Path)
	default:
		_, err = m.fetcher.Fetch(ctx, task.URL, task.Path)
	}
	task.Duration = time.Since(start)

	if err != nil {
		task.Status = models.TaskFailed
		task.Err = err
		logger.Warn("media task failed", "url", task.URL, "type", task.Type.String(), "error", err)
	} else {
		task.Status = models.TaskCompleted
		if info, statErr := os.Stat(task.Path); statErr == nil {
			task.Bytes = info.Size()
		}
		logger.Debug("media task completed", "url", task.URL, "path", task.Path, "bytes", task.Bytes)
	}

	m.broadcast(TaskFinishedEvent{Task: *task})
}

// dedupImages removes byte-identical images of the batch, keeping the first.
func (m *Manager) dedupImages(batch *models.Batch) {
	var paths []string
	byPath := make(map[string]*models.MediaTask)
	for _, task := range batch.Tasks {
		if task.Succeeded() && task.Type == models.MediaImage {
			paths = append(paths, task.Path)
			byPath[task.Path] = task
		}
	}
	if len(paths) < 1 {
		return
	}

	res := media.Deduplicate(paths)
	for path, sum := range res.Hashes {
		byPath[path].Hash = sum
	}
	for _, path := range res.Dropped {
		byPath[path].Status = models.TaskDuplicate
	}
	if len(res.Dropped) > 0 {
		logger.Info("dropped duplicate images", "batch", batch.ID, "count", len(res.Dropped))
	}
}

// finish records the batch against its reservation and archives it.
func (m *Manager) finish(batch *models.Batch, reservation *quota.Reservation) {
	success := batch.Succeeded()
	reservation.Commit(success)

	if m.database != nil {
		now := time.Now()
		event := &models.RequestEvent{
			Timestamp: now,
			BatchID:   batch.ID,
			Hour:      now.Hour(),
			Success:   success,
		}
		records := make([]models.MediaTaskRecord, 0, len(batch.Tasks))
		for _, task := range batch.Tasks {
			records = append(records, models.TaskRecordFrom(task))
		}
		if err := m.database.RecordBatch(event, records); err != nil {
			logger.Warn("failed to archive batch", "batch", batch.ID, "error", err)
			m.broadcast(ErrorEvent{Service: "archive", Error: err})
		}
	}

	logger.Info("batch finished", "batch", batch.ID, "tasks", len(batch.Tasks),
		"kept", len(batch.Paths()), "failed", len(batch.Failed()), "success", success)
	m.broadcast(BatchCompletedEvent{Batch: batch})
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Status returns the remaining budget and cumulative statistics.
func (m *Manager) Status() (models.Remaining, models.StatsSnapshot) {
	return m.quota.Remaining(), m.quota.Stats()
}

// Quota returns the quota manager for the mutation surface.
func (m *Manager) Quota() *quota.Manager {
	return m.quota
}

// Projection forecasts when the daily budget runs out.
func (m *Manager) Projection() *models.Projection {
	state := m.quota.Snapshot()
	return m.projection.Project(&state, m.quota.Remaining())
}

// Database returns the archive, or nil when it is disabled.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Config returns the configuration the manager was built from.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

var errNoArchive = errors.New("archive not initialized")

// RecentTasks returns the most recent archived media tasks.
func (m *Manager) RecentTasks(limit int) ([]models.MediaTaskRecord, error) {
	if m.database == nil {
		return nil, errNoArchive
	}
	return m.database.GetRecentMediaTasks(limit)
}

// RecentRequests returns the most recent archived quota requests.
func (m *Manager) RecentRequests(limit int) ([]models.RequestEvent, error) {
	if m.database == nil {
		return nil, errNoArchive
	}
	return m.database.GetRecentRequestEvents(limit)
}

// PruneArchive deletes archived rows older than days and compacts the file.
// It returns the number of deleted rows.
func (m *Manager) PruneArchive(days int) (int64, error) {
	if m.database == nil {
		return 0, errNoArchive
	}
	if days < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}

	deleted, err := m.database.CleanupOlderThan(days)
	if err != nil {
		return deleted, err
	}
	if err := m.database.Vacuum(); err != nil {
		return deleted, fmt.Errorf("failed to vacuum archive: %w", err)
	}
	logger.Info("archive pruned", "days", days, "deleted", deleted)
	return deleted, nil
}

// DailyRequests returns archived request counts per day for a time range.
func (m *Manager) DailyRequests(timeRange models.TimeRange) ([]models.DailyRequestPoint, error) {
	if m.database == nil {
		return nil, errNoArchive
	}
	return m.database.GetDailyRequests(timeRange.Days())
}

// HourlyPattern returns archived request counts by hour for a time range.
func (m *Manager) HourlyPattern(timeRange models.TimeRange) ([]models.HourlyPattern, error) {
	if m.database == nil {
		return nil, errNoArchive
	}
	return m.database.GetHourlyPatterns(timeRange.Days())
}

// ArchiveSummary aggregates the archive for a time range.
func (m *Manager) ArchiveSummary(timeRange models.TimeRange) (*models.ArchiveSummary, error) {
	if m.database == nil {
		return nil, errNoArchive
	}
	return m.database.GetArchiveSummary(timeRange)
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.quota.Close(); err != nil {
			errs = append(errs, err)
		}

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}

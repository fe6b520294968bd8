package quota

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/mediagate/internal/logger"
)

const debounceInterval = 100 * time.Millisecond

// startWatcher starts the file system watcher.
func (m *Manager) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory (to catch rename-over and recreation)
	if err := watcher.Add(filepath.Dir(m.store.Path())); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (m *Manager) watchLoop() {
	defer m.wg.Done()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Base(m.store.Path())
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceInterval)
			} else {
				debounce.Reset(debounceInterval)
			}
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			m.reload()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("quota watcher error", "error", err)
			m.sendEvent(Event{Type: EventWatchError, Error: err})

		case <-m.stopChan:
			return
		}
	}
}

// reload re-reads the document after an external change. It reports whether
// the in-memory state was replaced.
func (m *Manager) reload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Unsaved in-memory changes win over the disk until a write succeeds.
	if m.persistErr != nil {
		logger.Debug("skipping quota reload, state not persisted", "path", m.store.Path())
		return false
	}

	data, err := m.store.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read quota document", "path", m.store.Path(), "error", err)
			m.sendEvent(Event{Type: EventWatchError, Error: err})
		}
		return false
	}
	if bytes.Equal(data, m.lastSaved) {
		return false
	}

	state, err := Decode(data, m.now(), m.defaultMonthly)
	if err != nil {
		logger.Warn("ignoring invalid quota document", "path", m.store.Path(), "error", err)
		m.sendEvent(Event{Type: EventWatchError, Error: err})
		return false
	}

	m.state = state
	m.lastSaved = data
	logger.Info("quota document reloaded", "path", m.store.Path())
	m.sendEvent(Event{Type: EventReloaded})
	return true
}

package quota

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
)

// Store reads and writes the quota document as a whole. It holds no state of
// its own; the Manager serializes access.
type Store struct {
	path string
}

// NewStore returns a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the raw document bytes.
func (s *Store) Read() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Write encodes state and replaces the document atomically. It returns the
// bytes written so callers can recognize their own writes later.
func (s *Store) Write(state *models.QuotaState) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quota state: %w", err)
	}
	data = append(data, '\n')

	// Write to temp file first, then rename
	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.path); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "path", tmpFile, "error", removeErr)
		}
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return data, nil
}

// Decode parses a quota document on top of the defaults for now and
// monthlyLimit, then normalizes it. Keys missing from data keep their default
// values.
func Decode(data []byte, now time.Time, monthlyLimit int) (models.QuotaState, error) {
	state := models.DefaultQuotaState(now, monthlyLimit)
	// disabledHours is only honored when the document carries it.
	state.DisabledHours = nil

	if len(bytes.TrimSpace(data)) == 0 {
		return models.QuotaState{}, fmt.Errorf("quota document is empty")
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return models.QuotaState{}, fmt.Errorf("failed to parse quota document: %w", err)
	}

	if state.Version > models.QuotaStateVersion {
		logger.Warn("quota document is newer than this build",
			"version", state.Version, "supported", models.QuotaStateVersion)
	}

	normalize(&state, now, monthlyLimit)
	return state, nil
}

// normalize backfills explicit nulls and repairs hand edits so that every
// invariant of the document holds.
func normalize(s *models.QuotaState, now time.Time, monthlyLimit int) {
	if s.MonthlyLimit <= 0 {
		s.MonthlyLimit = monthlyLimit
	}
	s.DailyLimit = models.DeriveDailyLimit(s.MonthlyLimit)

	if s.ManualDailyLimit != nil && *s.ManualDailyLimit < 0 {
		s.ManualDailyLimit = nil
	}

	s.DailyUsage = max(s.DailyUsage, 0)
	s.MonthlyUsage = max(s.MonthlyUsage, 0)
	s.Stats.TotalRequests = max(s.Stats.TotalRequests, 0)
	s.Stats.TotalAllowed = max(s.Stats.TotalAllowed, 0)
	s.Stats.TotalBlocked = max(s.Stats.TotalBlocked, 0)

	if s.CurrentMonth == "" {
		s.CurrentMonth = models.MonthKey(now)
	}
	if s.LastResetDate == "" {
		s.LastResetDate = models.DateKey(now)
	}

	if s.EnabledHours == nil {
		s.EnabledHours = models.DefaultEnabledHours()
	}
	enabled := models.NormalizeHours(s.EnabledHours)
	if s.DisabledHours != nil {
		disabled := models.NormalizeHours(s.DisabledHours)
		kept := enabled[:0]
		for _, h := range enabled {
			if !containsHour(disabled, h) {
				kept = append(kept, h)
			}
		}
		enabled = kept
	}
	s.EnabledHours = enabled
	s.DisabledHours = models.ComplementHours(enabled)

	history := make([]models.RequestRecord, 0, len(s.RequestHistory))
	for _, r := range s.RequestHistory {
		if models.ValidHour(r.Hour) {
			history = append(history, r)
		}
	}
	if len(history) > models.HistoryCapacity {
		history = history[len(history)-models.HistoryCapacity:]
	}
	s.RequestHistory = history

	s.Version = models.QuotaStateVersion
}

func containsHour(sorted []int, h int) bool {
	for _, v := range sorted {
		if v == h {
			return true
		}
		if v > h {
			return false
		}
	}
	return false
}

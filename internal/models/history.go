package models

import "time"

// TimeRange represents the selected history time range.
type TimeRange int

const (
	// TimeRange24Hours shows data from the last 24 hours.
	TimeRange24Hours TimeRange = iota
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days
	// TimeRange30Days shows data from the last 30 days.
	TimeRange30Days
	// TimeRangeAllTime shows all available historical data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Days returns the number of days for the time range (0 = unlimited).
func (t TimeRange) Days() int {
	switch t {
	case TimeRange24Hours:
		return 1
	case TimeRange7Days:
		return 7
	case TimeRange30Days:
		return 30
	case TimeRangeAllTime:
		return 0
	default:
		return 30
	}
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}

// RequestEvent is an archived quota request (DB model). Unlike the in-state
// history ring it is never truncated.
type RequestEvent struct {
	Timestamp time.Time
	BatchID   string
	ID        int64
	Hour      int
	Success   bool
}

// DailyRequestPoint holds archived request counts for one calendar day.
type DailyRequestPoint struct {
	Date      time.Time
	Requests  int
	Succeeded int
	Failed    int
}

// HourlyPattern represents archived request counts by hour of day.
type HourlyPattern struct {
	Hour      int // 0-23
	Requests  int
	Succeeded int
}

// MediaTaskRecord is an archived media task (DB model).
type MediaTaskRecord struct {
	CreatedAt  time.Time
	ID         string
	BatchID    string
	URL        string
	Path       string
	Hash       string
	Status     TaskStatus
	Error      string
	MediaType  MediaType
	Bytes      int64
	DurationMs int64
}

// TaskRecordFrom converts a finished task into its archived form.
func TaskRecordFrom(t *MediaTask) MediaTaskRecord {
	return MediaTaskRecord{
		CreatedAt:  t.CreatedAt,
		ID:         t.ID,
		BatchID:    t.BatchID,
		URL:        t.URL,
		Path:       t.Path,
		Hash:       t.Hash,
		Status:     t.Status,
		Error:      t.ErrorString(),
		MediaType:  t.Type,
		Bytes:      t.Bytes,
		DurationMs: t.Duration.Milliseconds(),
	}
}

// ArchiveSummary aggregates the archive over a time range.
type ArchiveSummary struct {
	TimeRange      TimeRange
	TotalRequests  int
	TotalSucceeded int
	TotalTasks     int
	TotalBytes     int64
	Duplicates     int
}

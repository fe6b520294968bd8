package db

import (
	"testing"
	"time"

	"github.com/j-veylop/mediagate/internal/models"
)

func TestParseTimeString(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"2026-10-18 14:30:00", true},
		{"2026-10-18T14:30:00Z", true},
		{"2026-10-18T14:30:00.123456789+02:00", true},
		{"2026-10-18T14:30:00", true},
		{"not a time", false},
		{"", false},
	}

	for _, tt := range tests {
		_, ok := parseTimeString(tt.input)
		if ok != tt.valid {
			t.Errorf("parseTimeString(%q) valid = %v, want %v", tt.input, ok, tt.valid)
		}
	}

	local, _ := parseTimeString("2026-10-18 14:30:00")
	if local.Location() != time.Local || local.Hour() != 14 {
		t.Errorf("Expected zone-less value in local time, got %v", local)
	}
}

func seedEvents(t *testing.T, db *DB) time.Time {
	t.Helper()

	today := time.Now().Truncate(time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	longAgo := today.AddDate(0, 0, -60)

	events := []models.RequestEvent{
		{Timestamp: today, Hour: today.Hour(), Success: true},
		{Timestamp: today, Hour: today.Hour(), Success: false},
		{Timestamp: yesterday, Hour: yesterday.Hour(), Success: true},
		{Timestamp: longAgo, Hour: longAgo.Hour(), Success: true},
	}
	for i := range events {
		if err := db.InsertRequestEvent(&events[i]); err != nil {
			t.Fatalf("InsertRequestEvent failed: %v", err)
		}
	}
	return today
}

func TestGetDailyRequests(t *testing.T) {
	db := newTestDB(t)
	today := seedEvents(t, db)

	points, err := db.GetDailyRequests(30)
	if err != nil {
		t.Fatalf("GetDailyRequests failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Expected 2 days in window, got %d", len(points))
	}

	last := points[len(points)-1]
	if last.Requests != 2 || last.Succeeded != 1 || last.Failed != 1 {
		t.Errorf("Unexpected today point: %+v", last)
	}
	if y, m, d := last.Date.Date(); y != today.Year() || m != today.Month() || d != today.Day() {
		t.Errorf("Expected today's date, got %v", last.Date)
	}

	all, err := db.GetDailyRequests(0)
	if err != nil {
		t.Fatalf("GetDailyRequests(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 days overall, got %d", len(all))
	}
}

func TestGetHourlyPatterns(t *testing.T) {
	db := newTestDB(t)
	today := seedEvents(t, db)

	patterns, err := db.GetHourlyPatterns(0)
	if err != nil {
		t.Fatalf("GetHourlyPatterns failed: %v", err)
	}
	if len(patterns) != models.HoursPerDay {
		t.Fatalf("Expected 24 patterns, got %d", len(patterns))
	}

	// All seeded events share the same hour of day.
	p := patterns[today.Hour()]
	if p.Requests != 4 || p.Succeeded != 3 {
		t.Errorf("Unexpected pattern at hour %d: %+v", today.Hour(), p)
	}
	for i, p := range patterns {
		if p.Hour != i {
			t.Errorf("Pattern %d has hour %d", i, p.Hour)
		}
	}
}

func TestGetArchiveSummary(t *testing.T) {
	db := newTestDB(t)
	seedEvents(t, db)

	now := time.Now()
	tasks := []models.MediaTaskRecord{
		{ID: "a", BatchID: "b", URL: "u1", Status: models.TaskCompleted, Bytes: 100, CreatedAt: now},
		{ID: "b", BatchID: "b", URL: "u2", Status: models.TaskDuplicate, Bytes: 100, CreatedAt: now},
		{ID: "c", BatchID: "b", URL: "u3", Status: models.TaskFailed, CreatedAt: now},
	}
	if err := db.RecordBatch(nil, tasks); err != nil {
		t.Fatalf("RecordBatch failed: %v", err)
	}

	summary, err := db.GetArchiveSummary(models.TimeRange7Days)
	if err != nil {
		t.Fatalf("GetArchiveSummary failed: %v", err)
	}
	if summary.TotalRequests != 3 || summary.TotalSucceeded != 2 {
		t.Errorf("Unexpected request totals: %+v", summary)
	}
	if summary.TotalTasks != 3 || summary.TotalBytes != 100 || summary.Duplicates != 1 {
		t.Errorf("Unexpected task totals: %+v", summary)
	}

	all, err := db.GetArchiveSummary(models.TimeRangeAllTime)
	if err != nil {
		t.Fatalf("GetArchiveSummary failed: %v", err)
	}
	if all.TotalRequests != 4 {
		t.Errorf("Expected 4 requests overall, got %d", all.TotalRequests)
	}
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/mediagate/internal/models"
)

var timeFormats = []string{
	timeLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700 MST",
}

// parseTimeString parses a stored timestamp. Zone-less values are local time.
func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// timeFilter returns the WHERE fragment and arguments restricting column to
// the last days days. Zero days means no restriction.
func timeFilter(column string, days int) (string, []any) {
	if days <= 0 {
		return "", nil
	}
	return fmt.Sprintf(sqlTimeFilterClause, column), []any{fmt.Sprintf("-%d days", days)}
}

// GetDailyRequests returns archived request counts per calendar day, oldest first.
func (db *DB) GetDailyRequests(days int) ([]models.DailyRequestPoint, error) {
	filter, args := timeFilter("timestamp", days)

	query := fmt.Sprintf(`
		SELECT
			date(timestamp) as day,
			COUNT(*) as requests,
			COALESCE(SUM(success), 0) as succeeded
		FROM request_events
		WHERE 1=1 %s
		GROUP BY day
		ORDER BY day ASC
	`, filter)

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []models.DailyRequestPoint
	for rows.Next() {
		var p models.DailyRequestPoint
		var dateStr string

		if err := rows.Scan(&dateStr, &p.Requests, &p.Succeeded); err != nil {
			return nil, fmt.Errorf("failed to scan daily requests: %w", err)
		}

		if t, err := time.ParseInLocation("2006-01-02", dateStr, time.Local); err == nil {
			p.Date = t
		}
		p.Failed = p.Requests - p.Succeeded
		points = append(points, p)
	}

	return points, rows.Err()
}

// GetHourlyPatterns returns archived request counts by hour of day. The result
// always has 24 entries.
func (db *DB) GetHourlyPatterns(days int) ([]models.HourlyPattern, error) {
	filter, args := timeFilter("timestamp", days)

	query := fmt.Sprintf(`
		SELECT
			hour,
			COUNT(*) as requests,
			COALESCE(SUM(success), 0) as succeeded
		FROM request_events
		WHERE 1=1 %s
		GROUP BY hour
		ORDER BY hour ASC
	`, filter)

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Initialize all 24 hours
	patterns := make([]models.HourlyPattern, models.HoursPerDay)
	for i := range models.HoursPerDay {
		patterns[i] = models.HourlyPattern{Hour: i}
	}

	for rows.Next() {
		var hour sql.NullInt64
		var requests, succeeded int

		if err := rows.Scan(&hour, &requests, &succeeded); err != nil {
			continue
		}

		if hour.Valid && models.ValidHour(int(hour.Int64)) {
			patterns[hour.Int64].Requests = requests
			patterns[hour.Int64].Succeeded = succeeded
		}
	}

	return patterns, rows.Err()
}

// GetArchiveSummary aggregates the archive over a time range.
func (db *DB) GetArchiveSummary(timeRange models.TimeRange) (*models.ArchiveSummary, error) {
	summary := &models.ArchiveSummary{TimeRange: timeRange}
	days := timeRange.Days()

	filter, args := timeFilter("timestamp", days)
	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(success), 0)
		FROM request_events
		WHERE 1=1 %s
	`, filter)
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(
		&summary.TotalRequests, &summary.TotalSucceeded); err != nil {
		return nil, fmt.Errorf("failed to summarize requests: %w", err)
	}

	filter, args = timeFilter("created_at", days)
	query = fmt.Sprintf(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN bytes ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM media_tasks
		WHERE 1=1 %s
	`, filter)
	args = append([]any{string(models.TaskCompleted), string(models.TaskDuplicate)}, args...)
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(
		&summary.TotalTasks, &summary.TotalBytes, &summary.Duplicates); err != nil {
		return nil, fmt.Errorf("failed to summarize media tasks: %w", err)
	}

	return summary, nil
}

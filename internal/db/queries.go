package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/mediagate/internal/logger"
	"github.com/j-veylop/mediagate/internal/models"
)

// RecordBatch archives one quota request and the media tasks of its batch in
// a single transaction.
func (db *DB) RecordBatch(event *models.RequestEvent, tasks []models.MediaTaskRecord) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if event != nil {
		if err := insertRequestEvent(tx, event); err != nil {
			return err
		}
	}
	for i := range tasks {
		if err := insertMediaTask(tx, &tasks[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// InsertRequestEvent archives a quota request.
func (db *DB) InsertRequestEvent(event *models.RequestEvent) error {
	return db.RecordBatch(event, nil)
}

// InsertMediaTask archives a media task.
func (db *DB) InsertMediaTask(task *models.MediaTaskRecord) error {
	return db.RecordBatch(nil, []models.MediaTaskRecord{*task})
}

func insertRequestEvent(tx *sql.Tx, event *models.RequestEvent) error {
	query := `
		INSERT INTO request_events (timestamp, batch_id, hour, success)
		VALUES (?, ?, ?, ?)
	`

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	result, err := tx.ExecContext(context.Background(), query,
		timestamp.Local().Format(timeLayout),
		nullString(event.BatchID),
		event.Hour,
		boolToInt(event.Success),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.ID = id
	}
	return nil
}

func insertMediaTask(tx *sql.Tx, task *models.MediaTaskRecord) error {
	query := `
		INSERT OR REPLACE INTO media_tasks (
			id, batch_id, created_at, url, path, hash, media_type,
			status, error, bytes, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := tx.ExecContext(context.Background(), query,
		task.ID,
		task.BatchID,
		createdAt.Local().Format(timeLayout),
		task.URL,
		nullString(task.Path),
		nullString(task.Hash),
		task.MediaType.String(),
		string(task.Status),
		nullString(task.Error),
		task.Bytes,
		task.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert media task %s: %w", task.ID, err)
	}
	return nil
}

// GetRecentRequestEvents returns the most recent archived requests, newest first.
func (db *DB) GetRecentRequestEvents(limit int) ([]models.RequestEvent, error) {
	query := `
		SELECT id, timestamp, batch_id, hour, success
		FROM request_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var events []models.RequestEvent
	for rows.Next() {
		var e models.RequestEvent
		var ts string
		var batchID sql.NullString
		var success int

		if err := rows.Scan(&e.ID, &ts, &batchID, &e.Hour, &success); err != nil {
			return nil, fmt.Errorf("failed to scan request event: %w", err)
		}

		e.Timestamp, _ = parseTimeString(ts)
		e.BatchID = batchID.String
		e.Success = success != 0
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetRecentMediaTasks returns the most recent archived media tasks, newest first.
func (db *DB) GetRecentMediaTasks(limit int) ([]models.MediaTaskRecord, error) {
	query := `
		SELECT id, batch_id, created_at, url, path, hash, media_type,
			   status, error, bytes, duration_ms
		FROM media_tasks
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query media tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []models.MediaTaskRecord
	for rows.Next() {
		var task models.MediaTaskRecord
		var createdAt, mediaType, status string
		var path, hash, errStr sql.NullString

		err := rows.Scan(
			&task.ID,
			&task.BatchID,
			&createdAt,
			&task.URL,
			&path,
			&hash,
			&mediaType,
			&status,
			&errStr,
			&task.Bytes,
			&task.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media task: %w", err)
		}

		task.CreatedAt, _ = parseTimeString(createdAt)
		task.MediaType = models.ParseMediaType(mediaType)
		task.Status = models.TaskStatus(status)
		task.Path = path.String
		task.Hash = hash.String
		task.Error = errStr.String
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// CleanupOlderThan deletes archived rows older than the given number of days.
func (db *DB) CleanupOlderThan(days int) (int64, error) {
	window := fmt.Sprintf("-%d days", days)

	res, err := db.ExecContext(context.Background(),
		"DELETE FROM request_events WHERE timestamp < datetime('now', 'localtime', ?)", window)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up request events: %w", err)
	}
	events, _ := res.RowsAffected()

	res, err = db.ExecContext(context.Background(),
		"DELETE FROM media_tasks WHERE created_at < datetime('now', 'localtime', ?)", window)
	if err != nil {
		return events, fmt.Errorf("failed to clean up media tasks: %w", err)
	}
	tasks, _ := res.RowsAffected()

	return events + tasks, nil
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

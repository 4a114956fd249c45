package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("tracking run not found")

// TrackingRun summarizes one start-to-stop tracking session on a camera.
// EndedUnixNanos is nil while the run is live; the counters are written
// when the run finishes.
type TrackingRun struct {
	RunID             string `json:"run_id"`
	CameraID          string `json:"camera_id"`
	StartedUnixNanos  int64  `json:"started_unix_nanos"`
	EndedUnixNanos    *int64 `json:"ended_unix_nanos,omitempty"`
	Frames            int64  `json:"frames"`
	TracksCreated     int64  `json:"tracks_created"`
	DroppedDetections int64  `json:"dropped_detections"`
	DroppedRecords    int64  `json:"dropped_records"`
}

// CreateTrackingRun inserts a new live run row.
func (db *DB) CreateTrackingRun(run *TrackingRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.CameraID == "" {
		return fmt.Errorf("camera_id is required")
	}

	query := `
		INSERT INTO tracking_runs (run_id, camera_id, started_unix_nanos)
		VALUES (?, ?, ?)
	`

	_, err := db.Exec(query, run.RunID, run.CameraID, run.StartedUnixNanos)
	if err != nil {
		return fmt.Errorf("failed to create tracking run: %w", err)
	}

	return nil
}

// FinishTrackingRun writes the end timestamp and final counters for a run.
func (db *DB) FinishTrackingRun(run *TrackingRun) error {
	if run.EndedUnixNanos == nil {
		return fmt.Errorf("ended_unix_nanos is required")
	}

	query := `
		UPDATE tracking_runs SET
			ended_unix_nanos = ?,
			frames = ?,
			tracks_created = ?,
			dropped_detections = ?,
			dropped_records = ?
		WHERE run_id = ?
	`

	result, err := db.Exec(
		query,
		run.EndedUnixNanos,
		run.Frames,
		run.TracksCreated,
		run.DroppedDetections,
		run.DroppedRecords,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish tracking run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}

	return nil
}

// GetTrackingRun retrieves a run by ID.
func (db *DB) GetTrackingRun(runID string) (*TrackingRun, error) {
	query := `
		SELECT run_id, camera_id, started_unix_nanos, ended_unix_nanos,
			frames, tracks_created, dropped_detections, dropped_records
		FROM tracking_runs
		WHERE run_id = ?
	`

	var run TrackingRun
	err := db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.CameraID,
		&run.StartedUnixNanos,
		&run.EndedUnixNanos,
		&run.Frames,
		&run.TracksCreated,
		&run.DroppedDetections,
		&run.DroppedRecords,
	)

	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking run: %w", err)
	}

	return &run, nil
}

// GetLatestRun returns the most recently started run for a camera,
// finished or not.
func (db *DB) GetLatestRun(cameraID string) (*TrackingRun, error) {
	query := `
		SELECT run_id, camera_id, started_unix_nanos, ended_unix_nanos,
			frames, tracks_created, dropped_detections, dropped_records
		FROM tracking_runs
		WHERE camera_id = ?
		ORDER BY started_unix_nanos DESC
		LIMIT 1
	`

	var run TrackingRun
	err := db.QueryRow(query, cameraID).Scan(
		&run.RunID,
		&run.CameraID,
		&run.StartedUnixNanos,
		&run.EndedUnixNanos,
		&run.Frames,
		&run.TracksCreated,
		&run.DroppedDetections,
		&run.DroppedRecords,
	)

	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

// GetRunsForCamera lists runs for a camera, newest first.
func (db *DB) GetRunsForCamera(cameraID string, limit int) ([]TrackingRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, camera_id, started_unix_nanos, ended_unix_nanos,
			frames, tracks_created, dropped_detections, dropped_records
		FROM tracking_runs
		WHERE camera_id = ?
		ORDER BY started_unix_nanos DESC
		LIMIT ?
	`

	rows, err := db.Query(query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []TrackingRun
	for rows.Next() {
		var run TrackingRun
		err := rows.Scan(
			&run.RunID,
			&run.CameraID,
			&run.StartedUnixNanos,
			&run.EndedUnixNanos,
			&run.Frames,
			&run.TracksCreated,
			&run.DroppedDetections,
			&run.DroppedRecords,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCameraNotFound is returned when a camera ID has no registry row.
var ErrCameraNotFound = errors.New("camera not found")

// ErrCameraExists is returned when creating a camera whose ID is taken.
var ErrCameraExists = errors.New("camera already exists")

// Camera represents a registered video source. TrackingConfig carries the
// camera's tracker parameter overrides as raw JSON; nil means server
// defaults apply.
type Camera struct {
	CameraID        string    `json:"camera_id"`
	Name            string    `json:"name"`
	StreamURL       string    `json:"stream_url"`
	Location        string    `json:"location"`
	IsActive        bool      `json:"is_active"`
	TrackingEnabled bool      `json:"tracking_enabled"`
	TrackingConfig  *string   `json:"tracking_config,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateCamera registers a new camera. CameraID and Name are required;
// CreatedAt/UpdatedAt are set here.
func (db *DB) CreateCamera(cam *Camera) error {
	if cam.CameraID == "" {
		return fmt.Errorf("camera_id is required")
	}
	if cam.Name == "" {
		return fmt.Errorf("name is required")
	}

	var exists bool
	err := db.QueryRow("SELECT COUNT(*) > 0 FROM cameras WHERE camera_id = ?", cam.CameraID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check camera existence: %w", err)
	}
	if exists {
		return ErrCameraExists
	}

	now := time.Now()
	query := `
		INSERT INTO cameras (
			camera_id, name, stream_url, location, is_active,
			tracking_enabled, tracking_config,
			created_unix_nanos, updated_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	isActiveInt := 0
	if cam.IsActive {
		isActiveInt = 1
	}
	trackingEnabledInt := 0
	if cam.TrackingEnabled {
		trackingEnabledInt = 1
	}

	_, err = db.Exec(
		query,
		cam.CameraID,
		cam.Name,
		cam.StreamURL,
		cam.Location,
		isActiveInt,
		trackingEnabledInt,
		cam.TrackingConfig,
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create camera: %w", err)
	}

	cam.CreatedAt = now
	cam.UpdatedAt = now
	return nil
}

// GetCamera retrieves a camera by ID.
func (db *DB) GetCamera(cameraID string) (*Camera, error) {
	query := `
		SELECT
			camera_id, name, stream_url, location, is_active,
			tracking_enabled, tracking_config,
			created_unix_nanos, updated_unix_nanos
		FROM cameras
		WHERE camera_id = ?
	`

	var cam Camera
	var isActiveInt, trackingEnabledInt int
	var createdNanos, updatedNanos int64

	err := db.QueryRow(query, cameraID).Scan(
		&cam.CameraID,
		&cam.Name,
		&cam.StreamURL,
		&cam.Location,
		&isActiveInt,
		&trackingEnabledInt,
		&cam.TrackingConfig,
		&createdNanos,
		&updatedNanos,
	)

	if err == sql.ErrNoRows {
		return nil, ErrCameraNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}

	cam.IsActive = isActiveInt == 1
	cam.TrackingEnabled = trackingEnabledInt == 1
	cam.CreatedAt = time.Unix(0, createdNanos)
	cam.UpdatedAt = time.Unix(0, updatedNanos)

	return &cam, nil
}

// GetAllCameras retrieves all registered cameras ordered by ID.
func (db *DB) GetAllCameras() ([]Camera, error) {
	query := `
		SELECT
			camera_id, name, stream_url, location, is_active,
			tracking_enabled, tracking_config,
			created_unix_nanos, updated_unix_nanos
		FROM cameras
		ORDER BY camera_id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []Camera
	for rows.Next() {
		var cam Camera
		var isActiveInt, trackingEnabledInt int
		var createdNanos, updatedNanos int64

		err := rows.Scan(
			&cam.CameraID,
			&cam.Name,
			&cam.StreamURL,
			&cam.Location,
			&isActiveInt,
			&trackingEnabledInt,
			&cam.TrackingConfig,
			&createdNanos,
			&updatedNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}

		cam.IsActive = isActiveInt == 1
		cam.TrackingEnabled = trackingEnabledInt == 1
		cam.CreatedAt = time.Unix(0, createdNanos)
		cam.UpdatedAt = time.Unix(0, updatedNanos)

		cameras = append(cameras, cam)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cameras: %w", err)
	}

	return cameras, nil
}

// SetTrackingEnabled flips the tracking opt-in flag for a camera.
func (db *DB) SetTrackingEnabled(cameraID string, enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}

	result, err := db.Exec(
		"UPDATE cameras SET tracking_enabled = ?, updated_unix_nanos = ? WHERE camera_id = ?",
		enabledInt, time.Now().UnixNano(), cameraID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tracking_enabled: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}

	return nil
}

// SetTrackingConfig stores a camera's tracker parameter overrides as raw
// JSON. Passing nil clears the overrides so server defaults apply again.
func (db *DB) SetTrackingConfig(cameraID string, configJSON *string) error {
	result, err := db.Exec(
		"UPDATE cameras SET tracking_config = ?, updated_unix_nanos = ? WHERE camera_id = ?",
		configJSON, time.Now().UnixNano(), cameraID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tracking_config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}

	return nil
}

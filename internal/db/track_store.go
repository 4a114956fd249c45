package db

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/tracksight/internal/geom"
	"github.com/banshee-data/tracksight/internal/tracker"
)

// TrackRow is the persisted aggregate for one track within a run. AvgScore
// is the running mean of the matched-frame detection scores.
type TrackRow struct {
	RunID      string  `json:"run_id"`
	TrackID    int64   `json:"track_id"`
	Class      string  `json:"class"`
	State      string  `json:"state"`
	FirstFrame int64   `json:"first_frame"`
	LastFrame  int64   `json:"last_frame"`
	Hits       int64   `json:"hits"`
	PeakScore  float64 `json:"peak_score"`
	AvgScore   float64 `json:"avg_score"`
}

// TrackObservationRow is one matched-frame box for a track.
type TrackObservationRow struct {
	RunID   string   `json:"run_id"`
	TrackID int64    `json:"track_id"`
	Frame   int64    `json:"frame"`
	Box     geom.Box `json:"box"`
	Score   float64  `json:"score"`
}

// RecordFrame persists the engine output for one frame. Matched tracks
// (time_since_update zero) get their aggregate row upserted and a box
// observation inserted; coasting tracks only have their state refreshed.
// Implements the session recorder interface.
func (db *DB) RecordFrame(cameraID, runID string, res tracker.StepResult) error {
	if len(res.Active) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin record frame tx for camera %s: %w", cameraID, err)
	}

	// INSERT OR REPLACE would cascade-delete observations on some schemas,
	// so aggregates use ON CONFLICT DO UPDATE. The running mean relies on
	// hits advancing by one per recorded match.
	upsertTrack := `
		INSERT INTO tracks (
			run_id, track_id, object_class, track_state,
			first_frame, last_frame, hits, peak_score, avg_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, track_id) DO UPDATE SET
			object_class = excluded.object_class,
			track_state = excluded.track_state,
			last_frame = excluded.last_frame,
			hits = excluded.hits,
			peak_score = MAX(peak_score, excluded.peak_score),
			avg_score = avg_score + (excluded.avg_score - avg_score) / excluded.hits
	`

	insertObs := `
		INSERT OR REPLACE INTO track_observations (
			run_id, track_id, frame, x1, y1, x2, y2, score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	updateState := `
		UPDATE tracks SET track_state = ? WHERE run_id = ? AND track_id = ?
	`

	for _, snap := range res.Active {
		if snap.TimeSinceUpdate > 0 {
			if _, err := tx.Exec(updateState, string(snap.State), runID, snap.ID); err != nil {
				tx.Rollback()
				return fmt.Errorf("update track state: %w", err)
			}
			continue
		}

		_, err := tx.Exec(
			upsertTrack,
			runID,
			snap.ID,
			snap.Class,
			string(snap.State),
			snap.StartFrame,
			res.Frame,
			snap.Hits,
			snap.Score,
			snap.Score,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert track: %w", err)
		}

		_, err = tx.Exec(
			insertObs,
			runID,
			snap.ID,
			res.Frame,
			snap.Box.X1,
			snap.Box.Y1,
			snap.Box.X2,
			snap.Box.Y2,
			snap.Score,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert track observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record frame tx: %w", err)
	}

	return nil
}

// GetRunTracks returns the track aggregates for a run ordered by track ID.
func (db *DB) GetRunTracks(runID string) ([]TrackRow, error) {
	query := `
		SELECT run_id, track_id, object_class, track_state,
			first_frame, last_frame, hits, peak_score, avg_score
		FROM tracks
		WHERE run_id = ?
		ORDER BY track_id
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tracks: %w", err)
	}
	defer rows.Close()

	var tracks []TrackRow
	for rows.Next() {
		var tr TrackRow
		err := rows.Scan(
			&tr.RunID,
			&tr.TrackID,
			&tr.Class,
			&tr.State,
			&tr.FirstFrame,
			&tr.LastFrame,
			&tr.Hits,
			&tr.PeakScore,
			&tr.AvgScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}

	return tracks, nil
}

// GetTrackObservations returns the matched-frame boxes for one track in
// frame order.
func (db *DB) GetTrackObservations(runID string, trackID int64, limit int) ([]TrackObservationRow, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT run_id, track_id, frame, x1, y1, x2, y2, score
		FROM track_observations
		WHERE run_id = ? AND track_id = ?
		ORDER BY frame ASC
		LIMIT ?
	`

	rows, err := db.Query(query, runID, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query track observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetRunObservations returns every recorded box for a run grouped by track,
// for trajectory rendering.
func (db *DB) GetRunObservations(runID string, limit int) ([]TrackObservationRow, error) {
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT run_id, track_id, frame, x1, y1, x2, y2, score
		FROM track_observations
		WHERE run_id = ?
		ORDER BY track_id, frame ASC
		LIMIT ?
	`

	rows, err := db.Query(query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]TrackObservationRow, error) {
	var observations []TrackObservationRow
	for rows.Next() {
		var obs TrackObservationRow
		err := rows.Scan(
			&obs.RunID,
			&obs.TrackID,
			&obs.Frame,
			&obs.Box.X1,
			&obs.Box.Y1,
			&obs.Box.X2,
			&obs.Box.Y2,
			&obs.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return observations, nil
}

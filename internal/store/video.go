package store

import (
	"database/sql"
	"time"
)

// VideoStatus is the outcome of ingesting one video.
type VideoStatus string

const (
	VideoOK     VideoStatus = "ok"
	VideoFailed VideoStatus = "failed"
)

// VideoResult records what one ingested video contributed.
type VideoResult struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Label     string      `json:"label"`
	Path      string      `json:"path"`
	Frames    int         `json:"frames"`
	Appended  int         `json:"appended_rows"`
	Status    VideoStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// VideoRepository provides access to per-video ingestion results.
type VideoRepository struct {
	db *sql.DB
}

// Videos returns the video repository for this store.
func (s *Store) Videos() *VideoRepository {
	return &VideoRepository{db: s.db}
}

// Record inserts a video result and sets its ID.
func (r *VideoRepository) Record(v *VideoResult) error {
	v.CreatedAt = time.Now()

	result, err := r.db.Exec(
		`INSERT INTO session_videos (session_id, label, path, frames, appended_rows, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SessionID, v.Label, v.Path, v.Frames, v.Appended, string(v.Status), v.Error, v.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

// ListBySession returns the videos of a session in ingestion order.
func (r *VideoRepository) ListBySession(sessionID string) ([]VideoResult, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, label, path, frames, appended_rows, status, error, created_at
		 FROM session_videos
		 WHERE session_id = ?
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []VideoResult
	for rows.Next() {
		var v VideoResult
		var status string
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Label, &v.Path, &v.Frames,
			&v.Appended, &status, &v.Error, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Status = VideoStatus(status)
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return videos, nil
}

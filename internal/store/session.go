package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// SessionMode is the kind of run a session records.
type SessionMode string

const (
	// SessionModeLive is an interactive camera capture.
	SessionModeLive SessionMode = "live"
	// SessionModeBatch is a video ingestion run.
	SessionModeBatch SessionMode = "batch"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session is one capture or ingestion run.
type Session struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Mode     SessionMode   `json:"mode"`
	Strategy string        `json:"strategy"`
	Status   SessionStatus `json:"status"`

	// Existing is the ledger row count when the session started.
	// Batch sessions spanning several labels leave it at zero.
	Existing int `json:"existing_rows"`

	// Appended is the number of rows the session added.
	Appended int `json:"appended_rows"`

	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository provides access to the sessions table.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a running session. An empty ID is replaced with a new UUID
// and a zero StartedAt with the current time.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	sess.Status = SessionRunning

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, label, mode, strategy, status, existing_rows, appended_rows, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Label, string(sess.Mode), sess.Strategy, string(sess.Status),
		sess.Existing, sess.Appended, sess.StartedAt,
	)
	return err
}

// Finish marks a session completed, or failed when runErr is non-nil, and
// records the number of appended rows.
func (r *SessionRepository) Finish(id string, appended int, runErr error) error {
	status := SessionCompleted
	msg := ""
	if runErr != nil {
		status = SessionFailed
		msg = runErr.Error()
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, appended_rows = ?, error = ?, ended_at = ?
		 WHERE id = ?`,
		string(status), appended, msg, time.Now(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, label, mode, strategy, status, existing_rows, appended_rows, error, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first. A limit below 1 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, label, mode, strategy, status, existing_rows, appended_rows, error, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	sess := &Session{}
	var mode, status string
	var ended sql.NullTime

	err := sc.Scan(&sess.ID, &sess.Label, &mode, &sess.Strategy, &status,
		&sess.Existing, &sess.Appended, &sess.Error, &sess.StartedAt, &ended)
	if err != nil {
		return nil, err
	}

	sess.Mode = SessionMode(mode)
	sess.Status = SessionStatus(status)
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

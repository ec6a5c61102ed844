package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	media_id      TEXT NOT NULL,
	started_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transitions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	media_id       TEXT NOT NULL,
	from_phase     TEXT NOT NULL,
	to_phase       TEXT NOT NULL,
	trigger        TEXT NOT NULL,
	reason         TEXT,
	video_locked   INTEGER NOT NULL,
	satisfied_once INTEGER NOT NULL,
	at             TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id, id);
`

// #endregion schema

// #region store
// Store is the phase-transition journal. It records every phase change of
// the governance engine, grouped by session, so an operator can reconstruct
// exactly why playback was locked at any point.
type Store struct {
	db *sql.DB
}

// NewStore opens the journal database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region record
// RecordTransition appends one phase change, creating the session row on
// first sight. Implements governance.TransitionSink.
func (s *Store) RecordTransition(rec governance.TransitionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, media_id, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		rec.SessionID, rec.MediaID, rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO transitions (session_id, media_id, from_phase, to_phase, trigger, reason, video_locked, satisfied_once, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.MediaID, string(rec.FromPhase), string(rec.ToPhase),
		string(rec.Trigger), nullIfEmpty(rec.Reason), boolInt(rec.VideoLocked),
		boolInt(rec.SatisfiedOnce), rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	return tx.Commit()
}

// #endregion record

// #region queries
// ListSessions returns the most recent sessions with their transition counts.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT s.session_id, s.media_id, s.started_at, COUNT(t.id)
		 FROM sessions s LEFT JOIN transitions t ON t.session_id = s.session_id
		 GROUP BY s.session_id ORDER BY s.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedStr string
		if err := rows.Scan(&rec.SessionID, &rec.MediaID, &startedStr, &rec.Transitions); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListTransitions returns a session's transitions in the order they happened.
func (s *Store) ListTransitions(sessionID string) ([]governance.TransitionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, media_id, from_phase, to_phase, trigger, reason, video_locked, satisfied_once, at
		 FROM transitions WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []governance.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TailTransitions returns the most recent transitions across all sessions,
// newest first.
func (s *Store) TailTransitions(limit int) ([]governance.TransitionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, media_id, from_phase, to_phase, trigger, reason, video_locked, satisfied_once, at
		 FROM transitions ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("tail transitions: %w", err)
	}
	defer rows.Close()

	var records []governance.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanTransition(rows *sql.Rows) (governance.TransitionRecord, error) {
	var rec governance.TransitionRecord
	var fromPhase, toPhase, trigger, atStr string
	var reason sql.NullString
	var videoLocked, satisfiedOnce int

	err := rows.Scan(&rec.SessionID, &rec.MediaID, &fromPhase, &toPhase,
		&trigger, &reason, &videoLocked, &satisfiedOnce, &atStr)
	if err != nil {
		return governance.TransitionRecord{}, fmt.Errorf("scan transition: %w", err)
	}
	rec.FromPhase = governance.Phase(fromPhase)
	rec.ToPhase = governance.Phase(toPhase)
	rec.Trigger = governance.Trigger(trigger)
	if reason.Valid {
		rec.Reason = reason.String
	}
	rec.VideoLocked = videoLocked != 0
	rec.SatisfiedOnce = satisfiedOnce != 0
	rec.At, _ = time.Parse(time.RFC3339Nano, atStr)
	return rec, nil
}

// #endregion queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

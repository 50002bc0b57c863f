package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/plan-feasibility/internal/logging"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	request_id    TEXT NOT NULL,
	reason        TEXT NOT NULL,
	feasible      INTEGER NOT NULL,
	plan_index    INTEGER NOT NULL,
	candidate_id  TEXT,
	attempts      INTEGER NOT NULL,
	result_json   TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_request ON sessions (request_id);
`

// #endregion schema

// #region store-struct
// Store persists finished sessions and their transitions in SQLite. It
// implements orchestrator.Recorder.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ orchestrator.Recorder = (*Store)(nil)

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	for _, stmt := range []string{schema, logging.ProvenanceSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region record-transition
// RecordTransition appends one controller transition to the provenance log.
func (s *Store) RecordTransition(ctx context.Context, sessionID, requestID string, tr orchestrator.Transition) error {
	entry := logging.ProvenanceEntry{
		SessionID: sessionID,
		RequestID: requestID,
		Attempt:   tr.Attempt,
		PlanIndex: tr.PlanIndex,
		FromState: string(tr.From),
		ToState:   string(tr.To),
		Decision:  logging.DecisionAdvance,
		Reason:    string(tr.Reason),
		Feasible:  tr.Feasible,
		CreatedAt: s.now(),
	}
	if tr.To == orchestrator.StateTerminated {
		entry.Decision = logging.DecisionTerminate
	}
	if len(tr.Reasons) > 0 {
		raw, err := json.Marshal(tr.Reasons)
		if err != nil {
			return fmt.Errorf("marshal reasons: %w", err)
		}
		entry.ReasonsJSON = string(raw)
	}
	return logging.LogDecision(ctx, s.db, entry)
}

// #endregion record-transition

// #region record-session
// RecordSession stores a finished session. Recording the same session twice
// is an error.
func (s *Store) RecordSession(ctx context.Context, res orchestrator.SessionResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	feasible := res.Final != nil && res.Final.Feasible

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, request_id, reason, feasible, plan_index, candidate_id, attempts, result_json, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.RequestID, string(res.Reason), feasible, res.PlanIndex,
		res.CandidateID, res.Attempts, string(raw),
		res.StartedAt.UTC().Format(time.RFC3339Nano), res.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", res.SessionID, err)
	}
	return nil
}

// #endregion record-session

// #region get-session
// GetSession returns the full stored result for a session.
func (s *Store) GetSession(ctx context.Context, id string) (orchestrator.SessionResult, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM sessions WHERE session_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.SessionResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return orchestrator.SessionResult{}, fmt.Errorf("get session %s: %w", id, err)
	}

	var res orchestrator.SessionResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return orchestrator.SessionResult{}, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return res, nil
}

// #endregion get-session

// #region transitions
// Transitions returns the provenance entries recorded for a session.
func (s *Store) Transitions(ctx context.Context, id string) ([]logging.ProvenanceEntry, error) {
	return logging.Decisions(ctx, s.db, id)
}

// #endregion transitions

// #region list-sessions
// ListSessions returns the most recent sessions, optionally filtered by
// request ID.
func (s *Store) ListSessions(ctx context.Context, requestID string, limit int) ([]SessionSummary, error) {
	var (
		where []string
		args  []any
	)
	if requestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, requestID)
	}
	q := `SELECT session_id, request_id, reason, feasible, plan_index, candidate_id, attempts, started_at, finished_at FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY finished_at DESC, session_id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var candidateID sql.NullString
		var started, finished string
		if err := rows.Scan(&sum.SessionID, &sum.RequestID, &sum.Reason, &sum.Feasible, &sum.PlanIndex,
			&candidateID, &sum.Attempts, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.CandidateID = candidateID.String
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list-sessions

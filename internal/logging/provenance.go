package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema
// ProvenanceSchema creates the provenance_log table. Stores that share a
// database with the log run it during migration.
const ProvenanceSchema = `
CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	request_id    TEXT NOT NULL,
	attempt       INTEGER NOT NULL,
	plan_index    INTEGER NOT NULL,
	from_state    TEXT NOT NULL,
	to_state      TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	feasible      INTEGER NOT NULL,
	reasons_json  TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS provenance_log_session ON provenance_log (session_id, id);
`

// #endregion schema

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (session_id, request_id, attempt, plan_index, from_state, to_state, decision, reason, feasible, reasons_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.RequestID,
		entry.Attempt,
		entry.PlanIndex,
		entry.FromState,
		entry.ToState,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Feasible,
		nullIfEmpty(entry.ReasonsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region read-decisions
// Decisions returns a session's provenance entries in insertion order.
func Decisions(ctx context.Context, db *sql.DB, sessionID string) ([]ProvenanceEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, request_id, attempt, plan_index, from_state, to_state, decision, reason, feasible, reasons_json, created_at
		 FROM provenance_log WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var reason, reasonsJSON sql.NullString
		var created string
		if err := rows.Scan(&e.SessionID, &e.RequestID, &e.Attempt, &e.PlanIndex, &e.FromState, &e.ToState,
			&e.Decision, &reason, &e.Feasible, &reasonsJSON, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Reason = reason.String
		e.ReasonsJSON = reasonsJSON.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion read-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

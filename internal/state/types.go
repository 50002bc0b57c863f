package state

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a session ID has no stored record.
var ErrNotFound = errors.New("session not found")

// #region session-summary
// SessionSummary is one row of the sessions table without the full history.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason"`
	Feasible    bool      `json:"feasible"`
	PlanIndex   int       `json:"plan_index"`
	CandidateID string    `json:"candidate_id"`
	Attempts    int       `json:"attempts"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// #endregion session-summary

package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: one retry
// controller transition within a session.
type ProvenanceEntry struct {
	SessionID   string
	RequestID   string
	Attempt     int // zero-based
	PlanIndex   int
	FromState   string
	ToState     string
	Decision    string // "advance" | "terminate"
	Reason      string // termination reason, empty when advancing
	Feasible    bool
	ReasonsJSON string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// Decisions recorded for a transition.
const (
	DecisionAdvance   = "advance"
	DecisionTerminate = "terminate"
)

package orchestrator

// #region imports
import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

// #endregion

// #region state

// State is the retry controller's position in the search.
type State string

const (
	StateEvaluating State = "evaluating"
	StateAdvancing  State = "advancing"
	StateTerminated State = "terminated"
)

// #endregion

// #region termination-reason

// TerminationReason explains why a session stopped.
type TerminationReason string

const (
	ReasonNone                TerminationReason = ""
	ReasonSuccess             TerminationReason = "success"
	ReasonAttemptsExhausted   TerminationReason = "attempts_exhausted"
	ReasonNoMoreAlternatives  TerminationReason = "no_more_alternatives"
	ReasonEscalationPreempted TerminationReason = "escalation_preempted"
	ReasonCanceled            TerminationReason = "canceled"
)

// #endregion

// #region errors

var (
	// ErrTerminated is returned when a terminated controller is stepped again.
	ErrTerminated = errors.New("retry controller already terminated")
	// ErrNoCandidates is returned when the candidate source yields nothing.
	ErrNoCandidates = errors.New("no candidate plans")
)

// #endregion

// #region candidate

// Candidate is one proposed plan. The controller only uses its position in
// the sequence; ID and Attributes are passed through to providers.
type Candidate struct {
	ID         string            `json:"id"`
	Label      string            `json:"label,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// #endregion

// #region transition

// Transition records one controller decision. Attempt is the zero-based
// index of the evaluation it follows, so the first attempt is 0.
type Transition struct {
	From      State             `json:"from"`
	To        State             `json:"to"`
	Reason    TerminationReason `json:"reason,omitempty"`
	Attempt   int               `json:"attempt"`
	PlanIndex int               `json:"plan_index"`
	Feasible  bool              `json:"feasible"`
	Reasons   []string          `json:"reasons,omitempty"`
}

// #endregion

// #region session-result

// SessionResult is the sole handoff from a finished session. Final is nil
// only when the session was preempted or canceled before any evaluation.
// Attempts counts completed evaluations and always equals len(History).
type SessionResult struct {
	SessionID   string            `json:"session_id"`
	RequestID   string            `json:"request_id"`
	Reason      TerminationReason `json:"reason"`
	Final       *gate.Verdict     `json:"final,omitempty"`
	History     []gate.Verdict    `json:"history"`
	PlanIndex   int               `json:"plan_index"`
	CandidateID string            `json:"candidate_id,omitempty"`
	Attempts    int               `json:"attempts"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// #endregion

// #region interfaces

// CandidateSource supplies the ordered, non-empty candidate sequence for a request.
type CandidateSource interface {
	Candidates(ctx context.Context, requestID string) ([]Candidate, error)
}

// ObservationProvider produces one domain's record for a candidate.
// It returns an error wrapping observation.ErrUnavailable when it cannot.
type ObservationProvider interface {
	Observe(ctx context.Context, c Candidate, d observation.Domain) (observation.Record, error)
}

// EscalationSource reports whether the request is already being escalated.
type EscalationSource interface {
	Escalating(ctx context.Context, requestID string) (bool, error)
}

// Recorder persists transitions and finished sessions for audit.
type Recorder interface {
	RecordTransition(ctx context.Context, sessionID, requestID string, tr Transition) error
	RecordSession(ctx context.Context, res SessionResult) error
}

// #endregion

// #region adapters

// StaticCandidates is a fixed candidate sequence.
type StaticCandidates []Candidate

// Candidates returns a copy of the sequence.
func (s StaticCandidates) Candidates(context.Context, string) ([]Candidate, error) {
	out := make([]Candidate, len(s))
	copy(out, s)
	return out, nil
}

// StaticEscalation is an escalation flag that never changes.
type StaticEscalation bool

func (e StaticEscalation) Escalating(context.Context, string) (bool, error) {
	return bool(e), nil
}

// #endregion

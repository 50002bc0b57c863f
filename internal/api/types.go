package api

import (
	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	Observations observation.Set `json:"observations"`
}

// EvaluateResponse carries the verdict plus its reasons rendered as text.
type EvaluateResponse struct {
	gate.Verdict
	Messages []string `json:"messages"`
}

// CandidateInput is one candidate in a session request. When any candidate
// carries observations (or unavailable domains) the session is served from
// the request body; otherwise the configured remote provider is used.
type CandidateInput struct {
	ID           string               `json:"id" binding:"required"`
	Label        string               `json:"label,omitempty"`
	Attributes   map[string]string    `json:"attributes,omitempty"`
	Observations observation.Set      `json:"observations"`
	Unavailable  []observation.Domain `json:"unavailable,omitempty"`
}

// SessionRequest is the body of POST /v1/sessions.
type SessionRequest struct {
	RequestID  string           `json:"request_id"`
	Escalating bool             `json:"escalating"`
	Candidates []CandidateInput `json:"candidates" binding:"required,min=1,dive"`
}

// SessionResponse is a stored or freshly run session.
type SessionResponse struct {
	orchestrator.SessionResult
	Transitions []TransitionView `json:"transitions,omitempty"`
}

// TransitionView is one provenance row as returned by the API.
type TransitionView struct {
	Attempt   int    `json:"attempt"`
	PlanIndex int    `json:"plan_index"`
	From      string `json:"from"`
	To        string `json:"to"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Feasible  bool   `json:"feasible"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

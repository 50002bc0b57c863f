package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
)

// #endregion

// #region orchestrator-struct

// Orchestrator holds the process-wide, read-only wiring shared by sessions:
// the gate, the observation provider, the escalation source, and sinks.
// Sessions it creates share no mutable state.
type Orchestrator struct {
	gate        *gate.Gate
	provider    ObservationProvider
	escalation  EscalationSource
	recorder    Recorder
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxAttempts bounds evaluations per session.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) { o.maxAttempts = n }
}

// WithEscalation sets the escalation flag source. Defaults to never escalating.
func WithEscalation(src EscalationSource) Option {
	return func(o *Orchestrator) { o.escalation = src }
}

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// #endregion

// #region constructor

// DefaultMaxAttempts is used when no WithMaxAttempts option is given.
const DefaultMaxAttempts = 3

// New creates an orchestrator around a validated gate.
func New(g *gate.Gate, provider ObservationProvider, opts ...Option) (*Orchestrator, error) {
	if g == nil {
		return nil, fmt.Errorf("orchestrator: nil gate")
	}
	if provider == nil {
		return nil, fmt.Errorf("orchestrator: nil observation provider")
	}
	o := &Orchestrator{
		gate:        g,
		provider:    provider,
		escalation:  StaticEscalation(false),
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxAttempts < 1 {
		return nil, fmt.Errorf("orchestrator: max attempts must be at least 1, got %d", o.maxAttempts)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

// #endregion

// #region sessions

// NewSession prepares a session for one request. Sessions are single-use.
func (o *Orchestrator) NewSession(requestID string, source CandidateSource) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		requestID: requestID,
		source:    source,
		orch:      o,
		logger:    o.logger.With("session_id", id, "request_id", requestID),
	}
}

// Run creates and runs a session in one call.
func (o *Orchestrator) Run(ctx context.Context, requestID string, source CandidateSource) (SessionResult, error) {
	return o.NewSession(requestID, source).Run(ctx)
}

// Gate returns the evaluator, for one-off evaluations outside a session.
func (o *Orchestrator) Gate() *gate.Gate {
	return o.gate
}

// MaxAttempts returns the per-session evaluation bound.
func (o *Orchestrator) MaxAttempts() int {
	return o.maxAttempts
}

// #endregion

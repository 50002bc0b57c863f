package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

var tracer = otel.Tracer("feasibility.orchestrator")

// #region session

// Session is one bounded search over a request's candidates. It owns its
// controller and observation sets exclusively and must not be run twice.
type Session struct {
	id        string
	requestID string
	source    CandidateSource
	orch      *Orchestrator
	logger    *slog.Logger
	ran       bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// #endregion

// #region run

// Run drives the controller until it terminates. Each iteration gathers a
// fresh observation set for the current candidate, evaluates it, consults the
// escalation source once, and steps the controller.
//
// Exhaustion is a normal result, not an error. If ctx is canceled, Run stops
// between or during observation gathering and returns the history so far with
// ReasonCanceled and ctx.Err(). The in-flight attempt is discarded.
func (s *Session) Run(ctx context.Context) (SessionResult, error) {
	if s.ran {
		return SessionResult{}, fmt.Errorf("session %s already run", s.id)
	}
	s.ran = true

	ctx, span := tracer.Start(ctx, "orchestrator.Session.Run", trace.WithAttributes(
		attribute.String("session_id", s.id),
		attribute.String("request_id", s.requestID),
	))
	defer span.End()

	started := s.orch.now()

	candidates, err := s.source.Candidates(ctx, s.requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate source failed")
		return SessionResult{}, fmt.Errorf("candidates for %s: %w", s.requestID, err)
	}
	if len(candidates) == 0 {
		span.SetStatus(codes.Error, ErrNoCandidates.Error())
		return SessionResult{}, fmt.Errorf("request %s: %w", s.requestID, ErrNoCandidates)
	}

	ctrl, err := NewController(s.orch.maxAttempts, len(candidates))
	if err != nil {
		return SessionResult{}, err
	}

	if s.escalating(ctx) {
		tr, _ := ctrl.Preempt()
		s.transition(ctx, tr)
		return s.finish(ctx, span, ctrl, candidates, started), nil
	}

	for !ctrl.Terminated() {
		if err := ctx.Err(); err != nil {
			return s.abandon(ctx, span, ctrl, candidates, started, err)
		}

		cand := candidates[ctrl.PlanIndex()]
		verdict, err := s.attempt(ctx, ctrl, cand)
		if err != nil {
			return s.abandon(ctx, span, ctrl, candidates, started, err)
		}

		tr, err := ctrl.Step(verdict, s.escalating(ctx))
		if err != nil {
			return SessionResult{}, err
		}
		s.transition(ctx, tr)
	}

	return s.finish(ctx, span, ctrl, candidates, started), nil
}

// #endregion

// #region attempt

// attempt gathers and evaluates one candidate. The only error it returns is
// the context's; provider failures become an unavailable verdict.
func (s *Session) attempt(ctx context.Context, ctrl *Controller, cand Candidate) (gate.Verdict, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.attempt", trace.WithAttributes(
		attribute.Int("attempt", ctrl.Advances()),
		attribute.Int("plan_index", ctrl.PlanIndex()),
		attribute.String("candidate_id", cand.ID),
	))
	defer span.End()

	set, failed, cause := s.gather(ctx, cand)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "canceled during observation")
		return gate.Verdict{}, err
	}

	var verdict gate.Verdict
	if failed != "" {
		s.logger.Warn("observation unavailable",
			"candidate_id", cand.ID, "domain", failed, "error", cause)
		verdict = gate.UnavailableVerdict(set, failed, cause)
	} else {
		verdict = s.orch.gate.Evaluate(set)
	}
	recordVerdict(verdict)

	span.SetAttributes(
		attribute.Bool("feasible", verdict.Feasible),
		attribute.Int("reasons", len(verdict.Reasons)),
	)
	s.logger.Info("evaluated candidate",
		"attempt", ctrl.Advances(),
		"plan_index", ctrl.PlanIndex(),
		"candidate_id", cand.ID,
		"feasible", verdict.Feasible,
		"reasons", verdict.Strings(),
	)
	return verdict, nil
}

// gather requests each domain once, in declaration order, and stops at the
// first domain that cannot be observed. It returns the records gathered so
// far and, on failure, the failing domain and its cause.
func (s *Session) gather(ctx context.Context, cand Candidate) (observation.Set, observation.Domain, error) {
	domains := observation.Domains()
	records := make([]observation.Record, 0, len(domains))

	partial := func() observation.Set {
		set, _ := observation.NewSet(records...)
		return set
	}

	for _, d := range domains {
		if ctx.Err() != nil {
			return partial(), d, ctx.Err()
		}
		start := time.Now()
		rec, err := s.orch.provider.Observe(ctx, cand, d)
		elapsed := time.Since(start).Seconds()

		switch {
		case err != nil:
			recordObservation(string(d), "error", elapsed)
			return partial(), d, err
		case rec == nil:
			recordObservation(string(d), "error", elapsed)
			return partial(), d, fmt.Errorf("%w: provider returned no record", observation.ErrUnavailable)
		case rec.Domain() != d:
			recordObservation(string(d), "error", elapsed)
			return partial(), d, fmt.Errorf("%w: provider returned %s record", observation.ErrUnavailable, rec.Domain())
		}
		if err := observation.Validate(rec); err != nil {
			recordObservation(string(d), "invalid", elapsed)
			return partial(), d, fmt.Errorf("%w: %v", observation.ErrUnavailable, err)
		}
		recordObservation(string(d), "ok", elapsed)
		records = append(records, rec)
	}

	set, err := observation.NewSet(records...)
	if err != nil {
		// unreachable with one record per declared domain
		return observation.Set{}, domains[0], err
	}
	return set, "", nil
}

// #endregion

// #region escalation

// escalating consults the escalation source once. A failing source is
// treated as escalating so the request is handed to a human rather than
// searched further.
func (s *Session) escalating(ctx context.Context) bool {
	esc, err := s.orch.escalation.Escalating(ctx, s.requestID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn("escalation source failed, preempting", "error", err)
		return true
	}
	return esc
}

// #endregion

// #region finish

func (s *Session) transition(ctx context.Context, tr Transition) {
	s.logger.Debug("transition",
		"from", tr.From, "to", tr.To, "reason", tr.Reason,
		"attempt", tr.Attempt, "plan_index", tr.PlanIndex)
	if s.orch.recorder == nil {
		return
	}
	if err := s.orch.recorder.RecordTransition(context.WithoutCancel(ctx), s.id, s.requestID, tr); err != nil {
		s.logger.Error("failed to record transition", "error", err)
	}
}

func (s *Session) abandon(ctx context.Context, span trace.Span, ctrl *Controller, candidates []Candidate, started time.Time, cause error) (SessionResult, error) {
	tr, err := ctrl.Cancel()
	if err == nil {
		s.transition(ctx, tr)
	}
	span.RecordError(cause)
	span.SetStatus(codes.Error, "session canceled")
	res := s.finish(ctx, span, ctrl, candidates, started)
	return res, cause
}

func (s *Session) finish(ctx context.Context, span trace.Span, ctrl *Controller, candidates []Candidate, started time.Time) SessionResult {
	history := ctrl.History()
	res := SessionResult{
		SessionID:   s.id,
		RequestID:   s.requestID,
		Reason:      ctrl.Reason(),
		Final:       ctrl.Last(),
		History:     history,
		PlanIndex:   ctrl.PlanIndex(),
		CandidateID: candidates[ctrl.PlanIndex()].ID,
		Attempts:    len(history),
		StartedAt:   started,
		FinishedAt:  s.orch.now(),
	}

	recordSession(res.Reason, res.Attempts)
	span.SetAttributes(
		attribute.String("reason", string(res.Reason)),
		attribute.Int("evaluations", res.Attempts),
		attribute.Int("plan_index", res.PlanIndex),
	)
	if res.Reason != ReasonCanceled {
		span.SetStatus(codes.Ok, "")
	}

	s.logger.Info("session terminated",
		"reason", res.Reason,
		"evaluations", res.Attempts,
		"plan_index", res.PlanIndex,
		"candidate_id", res.CandidateID,
	)

	if s.orch.recorder != nil {
		if err := s.orch.recorder.RecordSession(context.WithoutCancel(ctx), res); err != nil {
			s.logger.Error("failed to record session", "error", err)
		}
	}
	return res
}

// #endregion

package orchestrator

import (
	"fmt"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
)

// #region controller

// Controller is the retry state machine for one session. It holds no locks;
// it is owned by a single session and stepped between iterations only.
type Controller struct {
	maxAttempts int
	candidates  int

	state     State
	advances  int
	planIndex int
	history   []gate.Verdict
	reason    TerminationReason
}

// NewController starts a controller in the evaluating state.
func NewController(maxAttempts, candidates int) (*Controller, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", maxAttempts)
	}
	if candidates < 1 {
		return nil, ErrNoCandidates
	}
	return &Controller{
		maxAttempts: maxAttempts,
		candidates:  candidates,
		state:       StateEvaluating,
	}, nil
}

// #endregion

// #region step

// Step applies one completed verdict. The guards are checked in order:
// escalation, feasibility, attempt budget, remaining alternatives.
// The verdict is appended to history in every case.
func (c *Controller) Step(v gate.Verdict, escalating bool) (Transition, error) {
	if c.state == StateTerminated {
		return Transition{}, ErrTerminated
	}
	c.history = append(c.history, v)

	tr := Transition{
		From:      c.state,
		Attempt:   c.advances,
		PlanIndex: c.planIndex,
		Feasible:  v.Feasible,
		Reasons:   v.Strings(),
	}

	switch {
	case escalating:
		c.terminate(ReasonEscalationPreempted)
	case v.Feasible:
		c.terminate(ReasonSuccess)
	// advances+1 evaluations have completed, counting this one
	case c.advances+1 >= c.maxAttempts:
		c.terminate(ReasonAttemptsExhausted)
	case c.planIndex+1 >= c.candidates:
		c.terminate(ReasonNoMoreAlternatives)
	default:
		c.advances++
		c.planIndex++
		tr.To = StateAdvancing
		c.state = StateEvaluating
		return tr, nil
	}

	tr.To = StateTerminated
	tr.Reason = c.reason
	return tr, nil
}

// #endregion

// #region preempt-cancel

// Preempt terminates before any evaluation because the request is escalating.
func (c *Controller) Preempt() (Transition, error) {
	return c.stop(ReasonEscalationPreempted)
}

// Cancel terminates because the caller abandoned the session.
func (c *Controller) Cancel() (Transition, error) {
	return c.stop(ReasonCanceled)
}

func (c *Controller) stop(reason TerminationReason) (Transition, error) {
	if c.state == StateTerminated {
		return Transition{}, ErrTerminated
	}
	tr := Transition{From: c.state, To: StateTerminated, Reason: reason, Attempt: c.advances, PlanIndex: c.planIndex}
	c.terminate(reason)
	return tr, nil
}

func (c *Controller) terminate(reason TerminationReason) {
	c.state = StateTerminated
	c.reason = reason
}

// #endregion

// #region accessors

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Terminated reports whether the search has stopped.
func (c *Controller) Terminated() bool { return c.state == StateTerminated }

// Advances returns the number of advances made so far. While evaluating it
// is also the zero-based index of the current attempt.
func (c *Controller) Advances() int { return c.advances }

// PlanIndex returns the index of the current candidate.
func (c *Controller) PlanIndex() int { return c.planIndex }

// Reason returns the termination reason, or ReasonNone while running.
func (c *Controller) Reason() TerminationReason { return c.reason }

// History returns a copy of the verdicts recorded so far, in attempt order.
func (c *Controller) History() []gate.Verdict {
	out := make([]gate.Verdict, len(c.history))
	copy(out, c.history)
	return out
}

// Last returns the most recent verdict, or nil if none was recorded.
func (c *Controller) Last() *gate.Verdict {
	if len(c.history) == 0 {
		return nil
	}
	v := c.history[len(c.history)-1]
	return &v
}

// #endregion

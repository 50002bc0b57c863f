package replay

import (
	"context"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// #region provider

// Provider serves a fixture's recorded observations. It is read-only after
// construction and safe for concurrent use.
type Provider struct {
	candidates map[string]FixtureCandidate
}

var _ orchestrator.ObservationProvider = (*Provider)(nil)

// NewProvider indexes the fixture's candidates by ID.
func NewProvider(f *Fixture) *Provider {
	p := &Provider{candidates: make(map[string]FixtureCandidate, len(f.Candidates))}
	for _, c := range f.Candidates {
		p.candidates[c.ID] = c
	}
	return p
}

// Observe returns the recorded record for d, or observation.ErrUnavailable
// if the candidate is unknown, the domain is marked unavailable, or no
// record was recorded.
func (p *Provider) Observe(ctx context.Context, cand orchestrator.Candidate, d observation.Domain) (observation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := p.candidates[cand.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown candidate %q", observation.ErrUnavailable, cand.ID)
	}
	if slices.Contains(c.Unavailable, d) {
		return nil, fmt.Errorf("%w: %s marked unavailable for %s", observation.ErrUnavailable, d, cand.ID)
	}
	rec, ok := c.Observations.Get(d)
	if !ok {
		return nil, fmt.Errorf("%w: no %s record for %s", observation.ErrUnavailable, d, cand.ID)
	}
	return rec, nil
}

// #endregion provider

// #region escalation

// scriptedEscalation answers from a FixtureEscalation. The session consults
// it once before the first evaluation and once after each evaluation, so
// the n-th call follows n completed evaluations.
type scriptedEscalation struct {
	script FixtureEscalation
	calls  int
}

func (e *scriptedEscalation) Escalating(context.Context, string) (bool, error) {
	completed := e.calls
	e.calls++
	if e.script.FromStart {
		return true, nil
	}
	return e.script.AfterEvaluations > 0 && completed >= e.script.AfterEvaluations, nil
}

// #endregion escalation

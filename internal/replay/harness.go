package replay

import (
	"context"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// #region types

// Result captures one fixture's replayed session and any differences from
// the expected outcome.
type Result struct {
	Description string                     `json:"description"`
	Session     orchestrator.SessionResult `json:"session"`
	Mismatches  []string                   `json:"mismatches,omitempty"`
}

// Passed reports whether the session matched every expectation.
func (r Result) Passed() bool {
	return len(r.Mismatches) == 0
}

// #endregion types

// #region replay

// Run replays a fixture through a real session against g. Options are
// applied after the fixture's own escalation script and attempt bound, so
// callers can attach a logger or recorder.
func Run(ctx context.Context, f *Fixture, g *gate.Gate, opts ...orchestrator.Option) (Result, error) {
	base := []orchestrator.Option{orchestrator.WithEscalation(&scriptedEscalation{script: f.Escalation})}
	if f.MaxAttempts > 0 {
		base = append(base, orchestrator.WithMaxAttempts(f.MaxAttempts))
	}
	o, err := orchestrator.New(g, NewProvider(f), append(base, opts...)...)
	if err != nil {
		return Result{}, err
	}

	res, err := o.Run(ctx, f.RequestID, f.CandidateList())
	if err != nil {
		return Result{}, fmt.Errorf("replay %q: %w", f.Description, err)
	}
	return Result{
		Description: f.Description,
		Session:     res,
		Mismatches:  Compare(f.Expected, res),
	}, nil
}

// Compare lists every way res differs from exp.
func Compare(exp FixtureExpected, res orchestrator.SessionResult) []string {
	var out []string
	if exp.Reason != res.Reason {
		out = append(out, fmt.Sprintf("reason: expected %q, got %q", exp.Reason, res.Reason))
	}
	if exp.PlanIndex != nil && *exp.PlanIndex != res.PlanIndex {
		out = append(out, fmt.Sprintf("plan_index: expected %d, got %d", *exp.PlanIndex, res.PlanIndex))
	}
	if exp.Evaluations != nil && *exp.Evaluations != len(res.History) {
		out = append(out, fmt.Sprintf("evaluations: expected %d, got %d", *exp.Evaluations, len(res.History)))
	}
	if exp.Reasons != nil {
		if len(exp.Reasons) != len(res.History) {
			out = append(out, fmt.Sprintf("reasons: expected %d verdicts, got %d", len(exp.Reasons), len(res.History)))
		} else {
			for i, want := range exp.Reasons {
				got := res.History[i].Strings()
				if !slices.Equal(want, got) {
					out = append(out, fmt.Sprintf("reasons[%d]: expected %q, got %q", i, want, got))
				}
			}
		}
	}
	return out
}

// #endregion replay

// #region summary

// Summary aggregates a batch of replays.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize counts passing and failing results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// #endregion summary

package gate

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

// #region gate
// Gate evaluates observation sets against a fixed rule table.
type Gate struct {
	table      rules.Table
	thresholds rules.Thresholds
}

// NewGate validates the table against the thresholds and returns a gate.
// The returned error wraps rules.ErrConfig.
func NewGate(table rules.Table, thresholds rules.Thresholds) (*Gate, error) {
	if err := table.Validate(thresholds); err != nil {
		return nil, err
	}
	tb := make(rules.Table, len(table))
	copy(tb, table)
	return &Gate{table: tb, thresholds: thresholds}, nil
}

// Thresholds returns the thresholds the gate was built with.
func (g *Gate) Thresholds() rules.Thresholds {
	return g.thresholds
}

// Evaluate runs every rule against the set. No rule is skipped because an
// earlier one failed. Reasons are ordered by domain declaration order, then
// by the order each rule emitted them.
func (g *Gate) Evaluate(set observation.Set) Verdict {
	var reasons []Reason

	for _, rule := range g.table {
		// Missing domains fail closed with a synthetic reason.
		if !set.Has(rule.Domain) {
			reasons = append(reasons, Reason{
				Domain:  rule.Domain,
				Rule:    rule.Name,
				Code:    rules.CodeObservationUnavailable,
				Message: fmt.Sprintf("no %s observation", rule.Domain),
			})
			continue
		}
		for _, f := range rule.Check(set, g.thresholds) {
			reasons = append(reasons, Reason{
				Domain:  rule.Domain,
				Rule:    rule.Name,
				Code:    f.Code,
				Message: f.Message,
			})
		}
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].Domain.Index() < reasons[j].Domain.Index()
	})

	return Verdict{
		Feasible:     len(reasons) == 0,
		Reasons:      reasons,
		Observations: set,
	}
}

// #endregion gate

package gate

import (
	"fmt"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

// #region reason
// Reason is one blocking factor: the domain it came from and a
// machine-readable code plus human-readable message.
type Reason struct {
	Domain  observation.Domain `json:"domain"`
	Rule    string             `json:"rule,omitempty"`
	Code    string             `json:"code"`
	Message string             `json:"message"`
}

// String renders unavailability as "observation_unavailable:<domain>" and
// every other reason as "<domain>: <message>".
func (r Reason) String() string {
	if r.Code == rules.CodeObservationUnavailable {
		return fmt.Sprintf("%s:%s", r.Code, r.Domain)
	}
	return fmt.Sprintf("%s: %s", r.Domain, r.Message)
}

// #endregion reason

// #region verdict
// Verdict is the immutable outcome of evaluating one observation set.
type Verdict struct {
	Feasible     bool            `json:"feasible"`
	Reasons      []Reason        `json:"reasons"`
	Observations observation.Set `json:"observations"`
}

// Domains lists the failing domains in declaration order, without repeats.
func (v Verdict) Domains() []observation.Domain {
	var out []observation.Domain
	seen := make(map[observation.Domain]bool)
	for _, r := range v.Reasons {
		if !seen[r.Domain] {
			seen[r.Domain] = true
			out = append(out, r.Domain)
		}
	}
	return out
}

// Strings renders every reason with Reason.String.
func (v Verdict) Strings() []string {
	out := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		out[i] = r.String()
	}
	return out
}

// UnavailableVerdict is the single-reason verdict for a candidate whose
// observations could not be gathered for domain d.
func UnavailableVerdict(partial observation.Set, d observation.Domain, cause error) Verdict {
	msg := fmt.Sprintf("no %s observation", d)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return Verdict{
		Feasible: false,
		Reasons: []Reason{{
			Domain:  d,
			Code:    rules.CodeObservationUnavailable,
			Message: msg,
		}},
		Observations: partial,
	}
}

// #endregion verdict

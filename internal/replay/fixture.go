package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a recorded
// request, the observations each candidate would produce, and the outcome
// the session is expected to reach.
type Fixture struct {
	Description string             `json:"description"`
	RequestID   string             `json:"request_id"`
	MaxAttempts int                `json:"max_attempts,omitempty"`
	Escalation  FixtureEscalation  `json:"escalation"`
	Candidates  []FixtureCandidate `json:"candidates"`
	Expected    FixtureExpected    `json:"expected"`
}

// FixtureEscalation scripts the escalation flag. With FromStart the
// request is escalating before the first evaluation; otherwise a positive
// AfterEvaluations raises the flag once that many evaluations completed.
type FixtureEscalation struct {
	FromStart        bool `json:"from_start,omitempty"`
	AfterEvaluations int  `json:"after_evaluations,omitempty"`
}

// FixtureCandidate is one candidate and the records it would be observed with.
// Domains listed in Unavailable fail to observe even if a record is present.
type FixtureCandidate struct {
	ID           string               `json:"id"`
	Label        string               `json:"label,omitempty"`
	Attributes   map[string]string    `json:"attributes,omitempty"`
	Observations observation.Set      `json:"observations"`
	Unavailable  []observation.Domain `json:"unavailable,omitempty"`
}

// FixtureExpected is the outcome to check. Nil fields are not checked.
type FixtureExpected struct {
	Reason      orchestrator.TerminationReason `json:"reason"`
	PlanIndex   *int                           `json:"plan_index,omitempty"`
	Evaluations *int                           `json:"evaluations,omitempty"`
	Reasons     [][]string                     `json:"reasons,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture decodes a fixture. Unknown fields and malformed observation
// records are errors.
func ParseFixture(data []byte) (*Fixture, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks candidate IDs and unavailable domains, and defaults the
// request ID.
func (f *Fixture) Validate() error {
	if len(f.Candidates) == 0 {
		return orchestrator.ErrNoCandidates
	}
	seen := make(map[string]bool, len(f.Candidates))
	for i, c := range f.Candidates {
		if c.ID == "" {
			return fmt.Errorf("candidate %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate candidate id %q", c.ID)
		}
		seen[c.ID] = true
		for _, d := range c.Unavailable {
			if !d.Known() {
				return fmt.Errorf("candidate %q: %w: %s", c.ID, observation.ErrUnknownDomain, d)
			}
		}
	}
	if f.RequestID == "" {
		f.RequestID = "replay"
	}
	return nil
}

// CandidateList returns the fixture's candidates in order.
func (f *Fixture) CandidateList() orchestrator.StaticCandidates {
	out := make(orchestrator.StaticCandidates, len(f.Candidates))
	for i, c := range f.Candidates {
		out[i] = orchestrator.Candidate{ID: c.ID, Label: c.Label, Attributes: c.Attributes}
	}
	return out
}

// #endregion fixture-loader

package rules

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

var thresholdValidate = validator.New()

// Validate checks the thresholds' own bounds.
func (t Thresholds) Validate() error {
	if err := thresholdValidate.Struct(t); err != nil {
		return fmt.Errorf("%w: thresholds: %v", ErrConfig, err)
	}
	return nil
}

// Domains lists the domains covered by the table, in table order.
func (tb Table) Domains() []observation.Domain {
	out := make([]observation.Domain, 0, len(tb))
	for _, r := range tb {
		out = append(out, r.Domain)
	}
	return out
}

// Validate fails if any required domain has no rule, any rule is malformed,
// or any rule references a threshold that is not defined.
func (tb Table) Validate(th Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}

	covered := make(map[observation.Domain]bool, len(tb))
	for i, r := range tb {
		if r.Name == "" {
			return fmt.Errorf("%w: rule %d has no name", ErrConfig, i)
		}
		if !r.Domain.Known() {
			return fmt.Errorf("%w: rule %q references unknown domain %q", ErrConfig, r.Name, r.Domain)
		}
		if r.Check == nil {
			return fmt.Errorf("%w: rule %q has no predicate", ErrConfig, r.Name)
		}
		for _, key := range r.Requires {
			if _, ok := th.Value(key); !ok {
				return fmt.Errorf("%w: rule %q references undefined threshold %q", ErrConfig, r.Name, key)
			}
		}
		covered[r.Domain] = true
	}

	for _, d := range observation.Domains() {
		if !covered[d] {
			return fmt.Errorf("%w: domain %q has no rule", ErrConfig, d)
		}
	}
	return nil
}

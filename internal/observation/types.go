package observation

import (
	"errors"
	"time"
)

// #region domain

// Domain names one independently sourced constraint dimension.
type Domain string

const (
	DomainPipelineHealth Domain = "pipeline_health"
	DomainManpower       Domain = "manpower"
	DomainSafety         Domain = "safety"
	DomainBackup         Domain = "backup"
	DomainSchedule       Domain = "schedule"
	DomainBudget         Domain = "budget"
)

// domainOrder is the fixed declaration order. Reason lists sort by it.
var domainOrder = []Domain{
	DomainPipelineHealth,
	DomainManpower,
	DomainSafety,
	DomainBackup,
	DomainSchedule,
	DomainBudget,
}

// Domains returns every known domain in declaration order.
func Domains() []Domain {
	out := make([]Domain, len(domainOrder))
	copy(out, domainOrder)
	return out
}

// Index returns the declaration position of d, or len(Domains()) if unknown.
func (d Domain) Index() int {
	for i, known := range domainOrder {
		if known == d {
			return i
		}
	}
	return len(domainOrder)
}

// Known reports whether d is one of the declared domains.
func (d Domain) Known() bool {
	return d.Index() < len(domainOrder)
}

// #endregion domain

// #region errors

var (
	// ErrUnavailable is returned by providers that cannot produce a record.
	ErrUnavailable = errors.New("observation unavailable")
	// ErrUnknownDomain is returned when a record is keyed by an undeclared domain.
	ErrUnknownDomain = errors.New("unknown observation domain")
	// ErrDuplicateDomain is returned when a set receives two records for one domain.
	ErrDuplicateDomain = errors.New("duplicate observation domain")
	// ErrMissingField is returned when a decoded record omits a field.
	ErrMissingField = errors.New("missing observation field")
)

// #endregion errors

// #region record

// Record is one domain's fact record. The set of implementations is closed.
type Record interface {
	Domain() Domain
	clone() Record
}

// #endregion record

// #region pipeline-health

// UnitReading is one monitored unit's pressure reading.
type UnitReading struct {
	ID          string  `json:"id" validate:"required"`
	PressurePSI float64 `json:"pressure_psi" validate:"gte=0"`
}

// PipelineHealth lists the monitored units on the plan's network segment.
type PipelineHealth struct {
	Units []UnitReading `json:"units" validate:"dive"`
}

func (PipelineHealth) Domain() Domain { return DomainPipelineHealth }

func (p PipelineHealth) clone() Record {
	p.Units = append([]UnitReading(nil), p.Units...)
	return p
}

// #endregion pipeline-health

// #region manpower

// Manpower describes workforce availability for the plan's window.
type Manpower struct {
	TotalWorkforce   int `json:"total_workforce" validate:"gte=0"`
	CommittedWorkers int `json:"committed_workers" validate:"gte=0"`
	Required         int `json:"required" validate:"gte=0"`
}

func (Manpower) Domain() Domain  { return DomainManpower }
func (m Manpower) clone() Record { return m }

// Available is the workforce not already committed to overlapping work.
func (m Manpower) Available() int {
	return m.TotalWorkforce - m.CommittedWorkers
}

// #endregion manpower

// #region safety

// Incident is one recorded safety incident.
type Incident struct {
	ID         string    `json:"id" validate:"required"`
	OccurredAt time.Time `json:"occurred_at" validate:"required"`
	Qualifying bool      `json:"qualifying"`
}

// Safety is the incident history for the plan's area, observed at AsOf.
type Safety struct {
	AsOf      time.Time  `json:"as_of" validate:"required"`
	Incidents []Incident `json:"incidents" validate:"dive"`
}

func (Safety) Domain() Domain { return DomainSafety }

func (s Safety) clone() Record {
	s.Incidents = append([]Incident(nil), s.Incidents...)
	return s
}

// CountQualifying counts qualifying incidents in the window (AsOf-window, AsOf].
func (s Safety) CountQualifying(window time.Duration) int {
	from := s.AsOf.Add(-window)
	n := 0
	for _, inc := range s.Incidents {
		if !inc.Qualifying {
			continue
		}
		if inc.OccurredAt.After(from) && !inc.OccurredAt.After(s.AsOf) {
			n++
		}
	}
	return n
}

// #endregion safety

// #region backup

// Backup is reserve capacity and the rate at which it would be drawn down.
type Backup struct {
	ReserveCapacity   float64 `json:"reserve_capacity" validate:"gte=0"`
	ConsumptionPerDay float64 `json:"consumption_per_day" validate:"gte=0"`
}

func (Backup) Domain() Domain  { return DomainBackup }
func (b Backup) clone() Record { return b }

// Hours converts reserve capacity into hours of cover. Returns false if the
// consumption rate is not positive.
func (b Backup) Hours() (float64, bool) {
	if b.ConsumptionPerDay <= 0 {
		return 0, false
	}
	return b.ReserveCapacity / b.ConsumptionPerDay * 24, true
}

// #endregion backup

// #region schedule

// Priority ranks a scheduled commitment.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Blocking reports whether an overlap with this priority blocks a plan.
func (p Priority) Blocking() bool {
	return p == PriorityHigh || p == PriorityCritical
}

// Commitment is already-scheduled work that may overlap the plan's window.
type Commitment struct {
	ID       string    `json:"id" validate:"required"`
	Start    time.Time `json:"start" validate:"required"`
	End      time.Time `json:"end" validate:"required"`
	Priority Priority  `json:"priority" validate:"oneof=low medium high critical"`
}

// Overlaps reports whether c intersects the half-open window [start, end).
func (c Commitment) Overlaps(start, end time.Time) bool {
	return c.Start.Before(end) && start.Before(c.End)
}

// Schedule is the requested window and the commitments around it.
type Schedule struct {
	WindowStart time.Time    `json:"window_start" validate:"required"`
	WindowEnd   time.Time    `json:"window_end" validate:"required"`
	Commitments []Commitment `json:"commitments" validate:"dive"`
}

func (Schedule) Domain() Domain { return DomainSchedule }

func (s Schedule) clone() Record {
	s.Commitments = append([]Commitment(nil), s.Commitments...)
	return s
}

// #endregion schedule

// #region budget

// Budget is the department's financial position for the plan.
type Budget struct {
	Available         float64 `json:"available" validate:"gte=0"`
	EstimatedCost     float64 `json:"estimated_cost" validate:"gte=0"`
	SpentToDate       float64 `json:"spent_to_date" validate:"gte=0"`
	MonthlyAllocation float64 `json:"monthly_allocation" validate:"gte=0"`
}

func (Budget) Domain() Domain  { return DomainBudget }
func (b Budget) clone() Record { return b }

// UtilizationPct is spend-to-date as a percentage of the monthly allocation.
// Returns false if the allocation is not positive.
func (b Budget) UtilizationPct() (float64, bool) {
	if b.MonthlyAllocation <= 0 {
		return 0, false
	}
	return b.SpentToDate / b.MonthlyAllocation * 100, true
}

// #endregion budget

package rules

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

// ErrConfig marks a fatal configuration problem in the rule table or thresholds.
var ErrConfig = errors.New("feasibility configuration error")

// #region failure-codes

// Machine-readable failure codes emitted by the rule table.
const (
	CodeObservationUnavailable = "observation_unavailable"
	CodeNoMonitoredUnits       = "no_monitored_units"
	CodeLowPressure            = "insufficient_pressure"
	CodeInsufficientManpower   = "insufficient_manpower"
	CodeHighRisk               = "high_safety_risk"
	CodeInsufficientBackup     = "insufficient_backup"
	CodeInvalidConsumption     = "invalid_consumption_rate"
	CodeScheduleConflict       = "high_priority_conflict"
	CodeInvalidWindow          = "invalid_window"
	CodeInsufficientFunds      = "insufficient_funds"
	CodeUtilizationOverLimit   = "utilization_over_limit"
	CodeInvalidAllocation      = "invalid_allocation"
)

// #endregion failure-codes

// #region failure

// Failure is one reason a rule did not pass.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// #endregion failure

// #region thresholds

// ThresholdKey names one static threshold a rule may depend on.
type ThresholdKey string

const (
	KeyMinUnitPSI              ThresholdKey = "min_unit_psi"
	KeyMinPressureRatio        ThresholdKey = "min_pressure_ratio"
	KeyMinWorkers              ThresholdKey = "min_workers"
	KeyIncidentWindow          ThresholdKey = "incident_window"
	KeyLowIncidentMax          ThresholdKey = "low_incident_max"
	KeyMediumIncidentMax       ThresholdKey = "medium_incident_max"
	KeyMinBackupHours          ThresholdKey = "min_backup_hours"
	KeyMaxBudgetUtilizationPct ThresholdKey = "max_budget_utilization_pct"
)

// Thresholds holds the numeric limits the rule table is evaluated against.
// It is built once at startup and passed by value thereafter.
type Thresholds struct {
	MinUnitPSI              float64       `yaml:"min_unit_psi" json:"min_unit_psi" validate:"gt=0"`
	MinPressureRatio        float64       `yaml:"min_pressure_ratio" json:"min_pressure_ratio" validate:"gt=0,lte=1"`
	MinWorkers              int           `yaml:"min_workers" json:"min_workers" validate:"gte=0"`
	IncidentWindow          time.Duration `yaml:"incident_window" json:"incident_window" validate:"gt=0"`
	LowIncidentMax          int           `yaml:"low_incident_max" json:"low_incident_max" validate:"gte=0"`
	MediumIncidentMax       int           `yaml:"medium_incident_max" json:"medium_incident_max" validate:"gtefield=LowIncidentMax"`
	MinBackupHours          float64       `yaml:"min_backup_hours" json:"min_backup_hours" validate:"gt=0"`
	MaxBudgetUtilizationPct float64       `yaml:"max_budget_utilization_pct" json:"max_budget_utilization_pct" validate:"gt=0,lte=100"`
}

// DefaultThresholds returns the limits used by utility maintenance planning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinUnitPSI:              40,
		MinPressureRatio:        0.8,
		MinWorkers:              5,
		IncidentWindow:          30 * 24 * time.Hour,
		LowIncidentMax:          0,
		MediumIncidentMax:       2,
		MinBackupHours:          24,
		MaxBudgetUtilizationPct: 90,
	}
}

// Value returns the numeric value for key. The boolean is false for keys
// the thresholds do not define.
func (t Thresholds) Value(key ThresholdKey) (float64, bool) {
	switch key {
	case KeyMinUnitPSI:
		return t.MinUnitPSI, true
	case KeyMinPressureRatio:
		return t.MinPressureRatio, true
	case KeyMinWorkers:
		return float64(t.MinWorkers), true
	case KeyIncidentWindow:
		return t.IncidentWindow.Hours(), true
	case KeyLowIncidentMax:
		return float64(t.LowIncidentMax), true
	case KeyMediumIncidentMax:
		return float64(t.MediumIncidentMax), true
	case KeyMinBackupHours:
		return t.MinBackupHours, true
	case KeyMaxBudgetUtilizationPct:
		return t.MaxBudgetUtilizationPct, true
	}
	return 0, false
}

// #endregion thresholds

// #region risk-tier

// RiskTier is the safety classification derived from incident counts.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// ClassifyRisk maps a qualifying-incident count onto the three ordered tiers.
func ClassifyRisk(count int, th Thresholds) RiskTier {
	switch {
	case count <= th.LowIncidentMax:
		return RiskLow
	case count <= th.MediumIncidentMax:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// #endregion risk-tier

// #region rule

// CheckFunc evaluates one domain. It returns no failures when the rule passes.
type CheckFunc func(set observation.Set, th Thresholds) []Failure

// Rule is a named predicate over one domain of an observation set.
type Rule struct {
	Name     string
	Domain   observation.Domain
	Requires []ThresholdKey
	Check    CheckFunc
}

// Table is the ordered, fixed set of rules.
type Table []Rule

// #endregion rule

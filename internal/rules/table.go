package rules

import (
	"fmt"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

// DefaultTable returns the rule table, one rule per domain in declaration order.
func DefaultTable() Table {
	return Table{
		{
			Name:     "pressure_adequacy",
			Domain:   observation.DomainPipelineHealth,
			Requires: []ThresholdKey{KeyMinUnitPSI, KeyMinPressureRatio},
			Check:    checkPressure,
		},
		{
			Name:     "manpower_sufficiency",
			Domain:   observation.DomainManpower,
			Requires: []ThresholdKey{KeyMinWorkers},
			Check:    checkManpower,
		},
		{
			Name:     "safety_risk",
			Domain:   observation.DomainSafety,
			Requires: []ThresholdKey{KeyIncidentWindow, KeyLowIncidentMax, KeyMediumIncidentMax},
			Check:    checkSafety,
		},
		{
			Name:     "backup_adequacy",
			Domain:   observation.DomainBackup,
			Requires: []ThresholdKey{KeyMinBackupHours},
			Check:    checkBackup,
		},
		{
			Name:   "schedule_conflict",
			Domain: observation.DomainSchedule,
			Check:  checkSchedule,
		},
		{
			Name:     "budget",
			Domain:   observation.DomainBudget,
			Requires: []ThresholdKey{KeyMaxBudgetUtilizationPct},
			Check:    checkBudget,
		},
	}
}

func unavailable(d observation.Domain) []Failure {
	return []Failure{{
		Code:    CodeObservationUnavailable,
		Message: fmt.Sprintf("no %s observation", d),
	}}
}

// #region pressure
func checkPressure(set observation.Set, th Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.PipelineHealth](set, observation.DomainPipelineHealth)
	if !ok {
		return unavailable(observation.DomainPipelineHealth)
	}
	if len(rec.Units) == 0 {
		return []Failure{{Code: CodeNoMonitoredUnits, Message: "no monitored units reported"}}
	}

	adequate := 0
	for _, u := range rec.Units {
		if u.PressurePSI >= th.MinUnitPSI {
			adequate++
		}
	}
	ratio := float64(adequate) / float64(len(rec.Units))
	if ratio < th.MinPressureRatio {
		return []Failure{{
			Code: CodeLowPressure,
			Message: fmt.Sprintf("%d of %d units at or above %.0f PSI (ratio %.2f < %.2f)",
				adequate, len(rec.Units), th.MinUnitPSI, ratio, th.MinPressureRatio),
		}}
	}
	return nil
}

// #endregion pressure

// #region manpower
func checkManpower(set observation.Set, th Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.Manpower](set, observation.DomainManpower)
	if !ok {
		return unavailable(observation.DomainManpower)
	}
	required := max(rec.Required, th.MinWorkers)
	available := rec.Available()
	if available < required {
		return []Failure{{
			Code:    CodeInsufficientManpower,
			Message: fmt.Sprintf("%d workers available, %d required", available, required),
		}}
	}
	return nil
}

// #endregion manpower

// #region safety
func checkSafety(set observation.Set, th Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.Safety](set, observation.DomainSafety)
	if !ok {
		return unavailable(observation.DomainSafety)
	}
	count := rec.CountQualifying(th.IncidentWindow)
	if tier := ClassifyRisk(count, th); tier == RiskHigh {
		return []Failure{{
			Code: CodeHighRisk,
			Message: fmt.Sprintf("%d qualifying incidents in trailing %s: risk %s",
				count, th.IncidentWindow, tier),
		}}
	}
	return nil
}

// #endregion safety

// #region backup
func checkBackup(set observation.Set, th Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.Backup](set, observation.DomainBackup)
	if !ok {
		return unavailable(observation.DomainBackup)
	}
	hours, ok := rec.Hours()
	if !ok {
		return []Failure{{
			Code:    CodeInvalidConsumption,
			Message: fmt.Sprintf("consumption rate %.2f/day is not positive", rec.ConsumptionPerDay),
		}}
	}
	if hours < th.MinBackupHours {
		return []Failure{{
			Code:    CodeInsufficientBackup,
			Message: fmt.Sprintf("backup covers %.1f hours, minimum %.1f", hours, th.MinBackupHours),
		}}
	}
	return nil
}

// #endregion backup

// #region schedule
func checkSchedule(set observation.Set, _ Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.Schedule](set, observation.DomainSchedule)
	if !ok {
		return unavailable(observation.DomainSchedule)
	}
	if !rec.WindowStart.Before(rec.WindowEnd) {
		return []Failure{{
			Code:    CodeInvalidWindow,
			Message: fmt.Sprintf("window %s to %s is empty", rec.WindowStart.Format("2006-01-02T15:04"), rec.WindowEnd.Format("2006-01-02T15:04")),
		}}
	}
	for _, c := range rec.Commitments {
		if c.Priority.Blocking() && c.Overlaps(rec.WindowStart, rec.WindowEnd) {
			// one conflict is enough; the domain is binary
			return []Failure{{
				Code:    CodeScheduleConflict,
				Message: fmt.Sprintf("overlaps %s-priority commitment %s", c.Priority, c.ID),
			}}
		}
	}
	return nil
}

// #endregion schedule

// #region budget
func checkBudget(set observation.Set, th Thresholds) []Failure {
	rec, ok := observation.Lookup[observation.Budget](set, observation.DomainBudget)
	if !ok {
		return unavailable(observation.DomainBudget)
	}

	var failures []Failure
	if rec.Available < rec.EstimatedCost {
		failures = append(failures, Failure{
			Code:    CodeInsufficientFunds,
			Message: fmt.Sprintf("available %.2f below estimated cost %.2f", rec.Available, rec.EstimatedCost),
		})
	}

	pct, ok := rec.UtilizationPct()
	switch {
	case !ok:
		failures = append(failures, Failure{
			Code:    CodeInvalidAllocation,
			Message: fmt.Sprintf("monthly allocation %.2f is not positive", rec.MonthlyAllocation),
		})
	case pct > th.MaxBudgetUtilizationPct:
		failures = append(failures, Failure{
			Code:    CodeUtilizationOverLimit,
			Message: fmt.Sprintf("utilization %.1f%% exceeds %.1f%%", pct, th.MaxBudgetUtilizationPct),
		})
	}
	return failures
}

// #endregion budget

package observation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainOrder(t *testing.T) {
	domains := Domains()
	require.Len(t, domains, 6)
	assert.Equal(t, DomainPipelineHealth, domains[0])
	assert.Equal(t, DomainBudget, domains[5])

	assert.Equal(t, 1, DomainManpower.Index())
	assert.Equal(t, 6, Domain("weather").Index())
	assert.False(t, Domain("weather").Known())

	// mutating the returned slice does not affect the package order
	domains[0] = DomainBudget
	assert.Equal(t, DomainPipelineHealth, Domains()[0])
}

func TestNewSetRejectsDuplicates(t *testing.T) {
	_, err := NewSet(Manpower{TotalWorkforce: 5}, Manpower{TotalWorkforce: 6})
	require.ErrorIs(t, err, ErrDuplicateDomain)
}

func TestSetIsImmutable(t *testing.T) {
	units := []UnitReading{{ID: "u1", PressurePSI: 45}}
	set := MustSet(PipelineHealth{Units: units})

	// caller mutates its own slice after construction
	units[0].PressurePSI = 10

	got, ok := Lookup[PipelineHealth](set, DomainPipelineHealth)
	require.True(t, ok)
	assert.Equal(t, 45.0, got.Units[0].PressurePSI)

	// mutating a returned copy does not leak back
	got.Units[0].PressurePSI = 0
	again, _ := Lookup[PipelineHealth](set, DomainPipelineHealth)
	assert.Equal(t, 45.0, again.Units[0].PressurePSI)
}

func TestSetDomainsInDeclarationOrder(t *testing.T) {
	set := MustSet(Budget{MonthlyAllocation: 1}, Manpower{}, PipelineHealth{})
	assert.Equal(t, []Domain{DomainPipelineHealth, DomainManpower, DomainBudget}, set.Domains())
	assert.Equal(t, 3, set.Len())
	assert.False(t, set.Has(DomainSafety))

	var empty Set
	assert.Equal(t, 0, empty.Len())
	_, ok := empty.Get(DomainBudget)
	assert.False(t, ok)
}

func TestLookupWrongType(t *testing.T) {
	set := MustSet(Manpower{TotalWorkforce: 3})
	_, ok := Lookup[Budget](set, DomainManpower)
	assert.False(t, ok)
}

func TestSafetyCountQualifying(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	s := Safety{
		AsOf: now,
		Incidents: []Incident{
			{ID: "a", OccurredAt: now.Add(-24 * time.Hour), Qualifying: true},
			{ID: "b", OccurredAt: now.Add(-29 * 24 * time.Hour), Qualifying: true},
			{ID: "c", OccurredAt: now.Add(-31 * 24 * time.Hour), Qualifying: true}, // outside window
			{ID: "d", OccurredAt: now.Add(-2 * time.Hour), Qualifying: false},
			{ID: "e", OccurredAt: now.Add(time.Hour), Qualifying: true}, // after AsOf
		},
	}
	assert.Equal(t, 2, s.CountQualifying(30*24*time.Hour))
}

func TestBackupHours(t *testing.T) {
	h, ok := Backup{ReserveCapacity: 1000, ConsumptionPerDay: 1000}.Hours()
	require.True(t, ok)
	assert.InDelta(t, 24.0, h, 1e-9)

	_, ok = Backup{ReserveCapacity: 1000}.Hours()
	assert.False(t, ok)
}

func TestBudgetUtilization(t *testing.T) {
	pct, ok := Budget{SpentToDate: 96000, MonthlyAllocation: 100000}.UtilizationPct()
	require.True(t, ok)
	assert.InDelta(t, 96.0, pct, 1e-9)

	_, ok = Budget{SpentToDate: 1}.UtilizationPct()
	assert.False(t, ok)
}

func TestCommitmentOverlaps(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	c := Commitment{ID: "c", Start: base, End: base.Add(2 * time.Hour), Priority: PriorityHigh}

	assert.True(t, c.Overlaps(base.Add(time.Hour), base.Add(3*time.Hour)))
	assert.False(t, c.Overlaps(base.Add(2*time.Hour), base.Add(3*time.Hour)), "touching end is not overlap")
	assert.False(t, c.Overlaps(base.Add(-time.Hour), base), "touching start is not overlap")
}

func TestDecodeSet(t *testing.T) {
	raw := []byte(`{
		"manpower": {"total_workforce": 10, "committed_workers": 4, "required": 5},
		"budget": {"available": 20000, "estimated_cost": 62500, "spent_to_date": 96000, "monthly_allocation": 100000}
	}`)
	set, err := DecodeSet(raw)
	require.NoError(t, err)

	mp, ok := Lookup[Manpower](set, DomainManpower)
	require.True(t, ok)
	assert.Equal(t, 6, mp.Available())
	assert.True(t, set.Has(DomainBudget))
}

func TestDecodeSetRejectsUnknownField(t *testing.T) {
	_, err := DecodeSet([]byte(`{"manpower": {"total_workforce": 10, "headcount": 3}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headcount")
}

func TestDecodeSetRejectsUnknownDomain(t *testing.T) {
	_, err := DecodeSet([]byte(`{"weather": {}}`))
	require.ErrorIs(t, err, ErrUnknownDomain)
}

func TestDecodeRecordValidates(t *testing.T) {
	_, err := DecodeRecord(DomainSchedule, []byte(`{
		"window_start": "2026-04-01T08:00:00Z",
		"window_end": "2026-04-01T12:00:00Z",
		"commitments": [{"id": "x", "start": "2026-04-01T09:00:00Z", "end": "2026-04-01T10:00:00Z", "priority": "urgent"}]
	}`))
	require.Error(t, err)

	_, err = DecodeRecord(DomainManpower, []byte(`{"total_workforce": -1}`))
	require.Error(t, err)
}

var completeRecords = map[Domain]string{
	DomainPipelineHealth: `{"units": [{"id": "u1", "pressure_psi": 55}]}`,
	DomainManpower:       `{"total_workforce": 10, "committed_workers": 4, "required": 5}`,
	DomainSafety:         `{"as_of": "2026-04-01T00:00:00Z", "incidents": [{"id": "i1", "occurred_at": "2026-03-30T00:00:00Z", "qualifying": true}]}`,
	DomainBackup:         `{"reserve_capacity": 2000, "consumption_per_day": 1000}`,
	DomainSchedule:       `{"window_start": "2026-04-03T00:00:00Z", "window_end": "2026-04-03T04:00:00Z", "commitments": [{"id": "c1", "start": "2026-04-03T01:00:00Z", "end": "2026-04-03T02:00:00Z", "priority": "low"}]}`,
	DomainBudget:         `{"available": 80000, "estimated_cost": 62500, "spent_to_date": 40000, "monthly_allocation": 100000}`,
}

func TestDecodeRecordAcceptsCompleteRecords(t *testing.T) {
	for _, d := range Domains() {
		rec, err := DecodeRecord(d, []byte(completeRecords[d]))
		require.NoError(t, err, d)
		assert.Equal(t, d, rec.Domain())
	}
}

func TestDecodeRecordRejectsMissingField(t *testing.T) {
	tests := []struct {
		domain Domain
		raw    string
		field  string
	}{
		{DomainPipelineHealth, `{}`, "units"},
		{DomainPipelineHealth, `{"units": [{"id": "u1"}]}`, "units[0].pressure_psi"},
		{DomainManpower, `{"total_workforce": 10, "required": 5}`, "committed_workers"},
		{DomainManpower, `{"committed_workers": 0, "required": 5}`, "total_workforce"},
		{DomainManpower, `{"total_workforce": 10, "committed_workers": 0}`, "required"},
		{DomainSafety, `{"as_of": "2026-04-01T00:00:00Z"}`, "incidents"},
		{DomainSafety, `{"as_of": "2026-04-01T00:00:00Z", "incidents": [{"id": "i1", "occurred_at": "2026-03-30T00:00:00Z"}]}`, "incidents[0].qualifying"},
		{DomainBackup, `{"reserve_capacity": 2000}`, "consumption_per_day"},
		{DomainSchedule, `{"window_start": "2026-04-03T00:00:00Z", "window_end": "2026-04-03T04:00:00Z"}`, "commitments"},
		{DomainBudget, `{"available": 80000, "spent_to_date": 40000, "monthly_allocation": 100000}`, "estimated_cost"},
		{DomainBudget, `{"available": 80000, "estimated_cost": 62500, "monthly_allocation": 100000}`, "spent_to_date"},
		{DomainBudget, `{"available": null, "estimated_cost": 1, "spent_to_date": 0, "monthly_allocation": 1}`, "available is null"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := DecodeRecord(tt.domain, []byte(tt.raw))
			require.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDecodeRecordAllowsEmptyLists(t *testing.T) {
	for _, incidents := range []string{`[]`, `null`} {
		rec, err := DecodeRecord(DomainSafety, []byte(`{"as_of": "2026-04-01T00:00:00Z", "incidents": `+incidents+`}`))
		require.NoError(t, err, incidents)
		assert.Empty(t, rec.(Safety).Incidents)
	}
}

func TestDecodeSetRejectsTruncatedRecord(t *testing.T) {
	_, err := DecodeSet([]byte(`{
		"manpower": {"total_workforce": 10, "required": 5},
		"budget": {"available": 80000, "monthly_allocation": 100000}
	}`))
	require.ErrorIs(t, err, ErrMissingField)
}

func TestSetJSONRoundTrip(t *testing.T) {
	set := MustSet(Backup{ReserveCapacity: 48, ConsumptionPerDay: 24})
	raw, err := json.Marshal(set)
	require.NoError(t, err)

	var back Set
	require.NoError(t, json.Unmarshal(raw, &back))
	b, ok := Lookup[Backup](back, DomainBackup)
	require.True(t, ok)
	assert.Equal(t, 48.0, b.ReserveCapacity)
}

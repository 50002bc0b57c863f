package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

var testNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

// #region fakes

type fakeProvider struct {
	mu          sync.Mutex
	records     map[string]map[observation.Domain]observation.Record
	unavailable map[string]observation.Domain
	hook        func(c Candidate, d observation.Domain) error
	calls       map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		records:     make(map[string]map[observation.Domain]observation.Record),
		unavailable: make(map[string]observation.Domain),
		calls:       make(map[string]int),
	}
}

// candidate registers a candidate with passing records plus overrides.
func (p *fakeProvider) candidate(id string, overrides ...observation.Record) Candidate {
	recs := passingRecords()
	for _, r := range overrides {
		recs[r.Domain()] = r
	}
	p.records[id] = recs
	return Candidate{ID: id}
}

func (p *fakeProvider) Observe(ctx context.Context, c Candidate, d observation.Domain) (observation.Record, error) {
	p.mu.Lock()
	p.calls[fmt.Sprintf("%s/%s", c.ID, d)]++
	p.mu.Unlock()

	if p.hook != nil {
		if err := p.hook(c, d); err != nil {
			return nil, err
		}
	}
	if p.unavailable[c.ID] == d {
		return nil, fmt.Errorf("%w: %s source down", observation.ErrUnavailable, d)
	}
	rec, ok := p.records[c.ID][d]
	if !ok {
		return nil, observation.ErrUnavailable
	}
	return rec, nil
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

type escalationSeq struct {
	answers []bool
	err     error
	calls   int
}

func (e *escalationSeq) Escalating(context.Context, string) (bool, error) {
	defer func() { e.calls++ }()
	if e.err != nil {
		return false, e.err
	}
	if e.calls < len(e.answers) {
		return e.answers[e.calls], nil
	}
	return false, nil
}

type memRecorder struct {
	transitions []Transition
	sessions    []SessionResult
}

func (r *memRecorder) RecordTransition(_ context.Context, _, _ string, tr Transition) error {
	r.transitions = append(r.transitions, tr)
	return nil
}

func (r *memRecorder) RecordSession(_ context.Context, res SessionResult) error {
	r.sessions = append(r.sessions, res)
	return nil
}

// #endregion

// #region helpers

func passingRecords() map[observation.Domain]observation.Record {
	units := make([]observation.UnitReading, 10)
	for i := range units {
		units[i] = observation.UnitReading{ID: fmt.Sprintf("u%d", i), PressurePSI: 50}
	}
	return map[observation.Domain]observation.Record{
		observation.DomainPipelineHealth: observation.PipelineHealth{Units: units},
		observation.DomainManpower:       observation.Manpower{TotalWorkforce: 12, CommittedWorkers: 2, Required: 5},
		observation.DomainSafety:         observation.Safety{AsOf: testNow},
		observation.DomainBackup:         observation.Backup{ReserveCapacity: 2000, ConsumptionPerDay: 1000},
		observation.DomainSchedule: observation.Schedule{
			WindowStart: testNow.Add(48 * time.Hour),
			WindowEnd:   testNow.Add(52 * time.Hour),
		},
		observation.DomainBudget: observation.Budget{Available: 80000, EstimatedCost: 62500, SpentToDate: 40000, MonthlyAllocation: 100000},
	}
}

func manpower(available, required int) observation.Manpower {
	return observation.Manpower{TotalWorkforce: available + 3, CommittedWorkers: 3, Required: required}
}

func newOrch(t *testing.T, p ObservationProvider, opts ...Option) *Orchestrator {
	t.Helper()
	g, err := gate.NewGate(rules.DefaultTable(), rules.DefaultThresholds())
	require.NoError(t, err)
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	o, err := New(g, p, opts...)
	require.NoError(t, err)
	return o
}

// #endregion

func TestSessionScenarioManpowerRetry(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{
		p.candidate("plan-a", manpower(4, 5)),
		p.candidate("plan-b", manpower(6, 5)),
		p.candidate("plan-c"),
	}
	rec := &memRecorder{}
	o := newOrch(t, p, WithRecorder(rec))

	res, err := o.Run(context.Background(), "req-1", cands)
	require.NoError(t, err)

	assert.Equal(t, ReasonSuccess, res.Reason)
	assert.Equal(t, 1, res.PlanIndex)
	assert.Equal(t, "plan-b", res.CandidateID)
	require.Len(t, res.History, 2)
	assert.Equal(t, 2, res.Attempts)

	first := res.History[0]
	assert.False(t, first.Feasible)
	assert.Equal(t, []observation.Domain{observation.DomainManpower}, first.Domains())

	require.NotNil(t, res.Final)
	assert.True(t, res.Final.Feasible)
	assert.Equal(t, "req-1", res.RequestID)
	assert.NotEmpty(t, res.SessionID)

	// plan-c was never observed
	assert.Equal(t, 12, p.totalCalls())

	require.Len(t, rec.transitions, 2)
	assert.Equal(t, StateAdvancing, rec.transitions[0].To)
	assert.Equal(t, ReasonSuccess, rec.transitions[1].Reason)
	assert.Equal(t, []int{0, 1}, []int{rec.transitions[0].Attempt, rec.transitions[1].Attempt})
	require.Len(t, rec.sessions, 1)
	assert.Equal(t, res.SessionID, rec.sessions[0].SessionID)
}

func TestSessionEachDomainObservedOncePerAttempt(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a", manpower(1, 5)), p.candidate("b", manpower(1, 5))}

	_, err := newOrch(t, p).Run(context.Background(), "req", cands)
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		for _, d := range observation.Domains() {
			assert.Equal(t, 1, p.calls[fmt.Sprintf("%s/%s", id, d)], "%s/%s", id, d)
		}
	}
}

func TestSessionScenarioEscalationFromStart(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a")}

	res, err := newOrch(t, p, WithEscalation(StaticEscalation(true))).Run(context.Background(), "req", cands)
	require.NoError(t, err)

	assert.Equal(t, ReasonEscalationPreempted, res.Reason)
	assert.Nil(t, res.Final)
	assert.Empty(t, res.History)
	assert.Zero(t, p.totalCalls())
}

func TestSessionEscalationAfterEvaluation(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a", manpower(1, 5)), p.candidate("b")}
	esc := &escalationSeq{answers: []bool{false, true}}

	res, err := newOrch(t, p, WithEscalation(esc)).Run(context.Background(), "req", cands)
	require.NoError(t, err)

	assert.Equal(t, ReasonEscalationPreempted, res.Reason)
	assert.Len(t, res.History, 1)
	assert.Equal(t, 2, esc.calls, "once at start, once per transition")
}

func TestSessionEscalationSourceErrorPreempts(t *testing.T) {
	p := newFakeProvider()
	esc := &escalationSeq{err: errors.New("risk service down")}

	res, err := newOrch(t, p, WithEscalation(esc)).Run(context.Background(), "req", StaticCandidates{p.candidate("a")})
	require.NoError(t, err)
	assert.Equal(t, ReasonEscalationPreempted, res.Reason)
}

func TestSessionNoMoreAlternatives(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a", manpower(1, 5)), p.candidate("b", manpower(2, 5))}

	res, err := newOrch(t, p, WithMaxAttempts(5)).Run(context.Background(), "req", cands)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoMoreAlternatives, res.Reason)
	assert.Len(t, res.History, 2)
	assert.Equal(t, 1, res.PlanIndex)
	require.NotNil(t, res.Final)
	assert.Equal(t, res.History[1], *res.Final)
}

func TestSessionAttemptsExhausted(t *testing.T) {
	p := newFakeProvider()
	var cands StaticCandidates
	for i := 0; i < 6; i++ {
		cands = append(cands, p.candidate(fmt.Sprintf("c%d", i), manpower(0, 5)))
	}

	res, err := newOrch(t, p).Run(context.Background(), "req", cands)
	require.NoError(t, err)
	assert.Equal(t, ReasonAttemptsExhausted, res.Reason)
	assert.Len(t, res.History, DefaultMaxAttempts)
	assert.Equal(t, DefaultMaxAttempts*len(observation.Domains()), p.totalCalls())
}

func TestSessionObservationUnavailableCountsAsAttempt(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a"), p.candidate("b")}
	p.unavailable["a"] = observation.DomainSafety

	res, err := newOrch(t, p).Run(context.Background(), "req", cands)
	require.NoError(t, err)

	require.Len(t, res.History, 2)
	first := res.History[0]
	assert.False(t, first.Feasible)
	assert.Equal(t, []string{"observation_unavailable:safety"}, first.Strings())
	assert.Equal(t, 2, first.Observations.Len(), "records gathered before the failure are kept")

	// gathering stopped at the failing domain
	assert.Zero(t, p.calls["a/backup"])
	assert.Equal(t, ReasonSuccess, res.Reason)
}

func TestSessionWrongRecordTypeIsUnavailable(t *testing.T) {
	p := newFakeProvider()
	cand := p.candidate("a")
	p.records["a"][observation.DomainBudget] = observation.Backup{ReserveCapacity: 1, ConsumptionPerDay: 1}

	res, err := newOrch(t, p, WithMaxAttempts(1)).Run(context.Background(), "req", StaticCandidates{cand})
	require.NoError(t, err)
	assert.Equal(t, []string{"observation_unavailable:budget"}, res.Final.Strings())
}

func TestSessionCanceledMidGather(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a", manpower(1, 5)), p.candidate("b"), p.candidate("c")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.hook = func(c Candidate, d observation.Domain) error {
		if c.ID == "b" && d == observation.DomainSafety {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	res, err := newOrch(t, p).Run(ctx, "req", cands)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCanceled, res.Reason)
	require.Len(t, res.History, 1, "the abandoned attempt is not recorded")
	assert.False(t, res.History[0].Feasible)
	assert.Equal(t, 1, res.PlanIndex)
}

func TestSessionCanceledBeforeStart(t *testing.T) {
	p := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newOrch(t, p).Run(ctx, "req", StaticCandidates{p.candidate("a")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCanceled, res.Reason)
	assert.Nil(t, res.Final)
	assert.Zero(t, p.totalCalls())
}

func TestSessionNoCandidates(t *testing.T) {
	_, err := newOrch(t, newFakeProvider()).Run(context.Background(), "req", StaticCandidates{})
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestSessionRunsOnce(t *testing.T) {
	p := newFakeProvider()
	s := newOrch(t, p).NewSession("req", StaticCandidates{p.candidate("a")})
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.Error(t, err)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	p := newFakeProvider()
	cands := StaticCandidates{p.candidate("a", manpower(1, 5)), p.candidate("b")}
	o := newOrch(t, p)

	var wg sync.WaitGroup
	results := make([]SessionResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := o.Run(context.Background(), fmt.Sprintf("req-%d", i), cands)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, res := range results {
		assert.Equal(t, ReasonSuccess, res.Reason)
		assert.Len(t, res.History, 2)
		assert.False(t, seen[res.SessionID])
		seen[res.SessionID] = true
	}
}

func TestNewValidatesOptions(t *testing.T) {
	g, err := gate.NewGate(rules.DefaultTable(), rules.DefaultThresholds())
	require.NoError(t, err)

	_, err = New(g, newFakeProvider(), WithMaxAttempts(0))
	require.Error(t, err)
	_, err = New(nil, newFakeProvider())
	require.Error(t, err)
	_, err = New(g, nil)
	require.Error(t, err)
}

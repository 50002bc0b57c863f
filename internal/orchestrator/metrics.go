package orchestrator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
)

var (
	// sessionsTotal counts finished sessions by termination reason.
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feasibility",
		Subsystem: "session",
		Name:      "terminated_total",
		Help:      "Finished retry sessions by termination reason",
	}, []string{"reason"})

	// sessionEvaluations observes how many evaluations a session needed.
	sessionEvaluations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "feasibility",
		Subsystem: "session",
		Name:      "evaluations",
		Help:      "Evaluations performed per finished session",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
	})

	// evaluationsTotal counts verdicts by outcome.
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feasibility",
		Subsystem: "gate",
		Name:      "evaluations_total",
		Help:      "Feasibility verdicts by outcome",
	}, []string{"feasible"})

	// blockingReasonsTotal counts blocking reasons by domain and code.
	blockingReasonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feasibility",
		Subsystem: "gate",
		Name:      "blocking_reasons_total",
		Help:      "Blocking reasons emitted by domain and code",
	}, []string{"domain", "code"})

	// observationLatency measures provider calls per domain.
	observationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feasibility",
		Subsystem: "observation",
		Name:      "latency_seconds",
		Help:      "Observation provider latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"domain", "status"})
)

func recordObservation(domain, status string, seconds float64) {
	observationLatency.WithLabelValues(domain, status).Observe(seconds)
}

func recordVerdict(v gate.Verdict) {
	evaluationsTotal.WithLabelValues(strconv.FormatBool(v.Feasible)).Inc()
	for _, r := range v.Reasons {
		blockingReasonsTotal.WithLabelValues(string(r.Domain), r.Code).Inc()
	}
}

func recordSession(reason TerminationReason, evaluations int) {
	sessionsTotal.WithLabelValues(string(reason)).Inc()
	sessionEvaluations.Observe(float64(evaluations))
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/logging"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
	"github.com/danielpatrickdp/plan-feasibility/internal/replay"
	"github.com/danielpatrickdp/plan-feasibility/internal/state"
)

// SessionStore is the audit store behind the session endpoints.
type SessionStore interface {
	orchestrator.Recorder
	GetSession(ctx context.Context, id string) (orchestrator.SessionResult, error)
	ListSessions(ctx context.Context, requestID string, limit int) ([]state.SessionSummary, error)
	Transitions(ctx context.Context, id string) ([]logging.ProvenanceEntry, error)
}

// Handlers serves the feasibility HTTP API.
type Handlers struct {
	gate        *gate.Gate
	store       SessionStore
	remote      orchestrator.ObservationProvider
	maxAttempts int
	logger      *slog.Logger
}

// NewHandlers creates handlers around a validated gate. store may be nil, in
// which case sessions are not persisted and lookups return 404.
func NewHandlers(g *gate.Gate, store SessionStore, maxAttempts int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		gate:        g,
		store:       store,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "api"),
	}
}

// WithRemoteProvider sets the provider used for sessions whose candidates
// carry no inline observations.
func (h *Handlers) WithRemoteProvider(p orchestrator.ObservationProvider) *Handlers {
	h.remote = p
	return h
}

// #region evaluate

// HandleEvaluate handles POST /v1/evaluate: one observation set in, one
// verdict out. Missing domains produce observation_unavailable reasons.
func (h *Handlers) HandleEvaluate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleEvaluate")

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}

	v := h.gate.Evaluate(req.Observations)
	logger.Info("Evaluated observation set", "feasible", v.Feasible, "reasons", len(v.Reasons))
	c.JSON(http.StatusOK, EvaluateResponse{Verdict: v, Messages: v.Strings()})
}

// #endregion evaluate

// #region sessions

// HandleRunSession handles POST /v1/sessions: runs a retry session over the
// request's candidates and returns its SessionResult.
func (h *Handlers) HandleRunSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRunSession")

	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST", Details: err.Error()})
		return
	}
	if req.RequestID == "" {
		req.RequestID = requestID
	}

	fixture, inline := toFixture(req)
	var provider orchestrator.ObservationProvider = h.remote
	if inline {
		if err := fixture.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid candidates", Code: "INVALID_CANDIDATES", Details: err.Error()})
			return
		}
		provider = replay.NewProvider(&fixture)
	}
	if provider == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "No observation source",
			Code:    "NO_OBSERVATIONS",
			Details: "candidates carry no observations and no remote observer is configured",
		})
		return
	}

	opts := []orchestrator.Option{
		orchestrator.WithMaxAttempts(h.maxAttempts),
		orchestrator.WithEscalation(orchestrator.StaticEscalation(req.Escalating)),
		orchestrator.WithLogger(h.logger),
	}
	if h.store != nil {
		opts = append(opts, orchestrator.WithRecorder(h.store))
	}
	o, err := orchestrator.New(h.gate, provider, opts...)
	if err != nil {
		logger.Error("Failed to build orchestrator", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Misconfigured orchestrator", Code: "CONFIG_ERROR"})
		return
	}

	res, err := o.Run(c.Request.Context(), req.RequestID, fixture.CandidateList())
	if err != nil {
		status := http.StatusInternalServerError
		code := "SESSION_FAILED"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
			code = "SESSION_CANCELED"
		}
		logger.Warn("Session did not complete", "error", err)
		c.JSON(status, ErrorResponse{Error: "Session did not complete", Code: code, Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionResult: res})
}

// HandleGetSession handles GET /v1/sessions/:id.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Session store not configured", Code: "NO_STORE"})
		return
	}
	id := c.Param("id")
	ctx := c.Request.Context()

	res, err := h.store.GetSession(ctx, id)
	if errors.Is(err, state.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Session not found", Code: "NOT_FOUND"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load session", Code: "STORE_ERROR"})
		return
	}

	entries, err := h.store.Transitions(ctx, id)
	if err != nil {
		h.logger.Error("Failed to load transitions", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load transitions", Code: "STORE_ERROR"})
		return
	}
	views := make([]TransitionView, len(entries))
	for i, e := range entries {
		views[i] = TransitionView{
			Attempt: e.Attempt, PlanIndex: e.PlanIndex, From: e.FromState, To: e.ToState,
			Decision: e.Decision, Reason: e.Reason, Feasible: e.Feasible,
		}
	}
	c.JSON(http.StatusOK, SessionResponse{SessionResult: res, Transitions: views})
}

// HandleListSessions handles GET /v1/sessions?request_id=&limit=.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, []state.SessionSummary{})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}

	list, err := h.store.ListSessions(c.Request.Context(), c.Query("request_id"), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list sessions", Code: "STORE_ERROR"})
		return
	}
	if list == nil {
		list = []state.SessionSummary{}
	}
	c.JSON(http.StatusOK, list)
}

// #endregion sessions

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// #region helpers

func toFixture(req SessionRequest) (replay.Fixture, bool) {
	f := replay.Fixture{RequestID: req.RequestID}
	inline := false
	for _, in := range req.Candidates {
		if in.Observations.Len() > 0 || len(in.Unavailable) > 0 {
			inline = true
		}
		f.Candidates = append(f.Candidates, replay.FixtureCandidate{
			ID:           in.ID,
			Label:        in.Label,
			Attributes:   in.Attributes,
			Observations: in.Observations,
			Unavailable:  in.Unavailable,
		})
	}
	return f, inline
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// #endregion helpers

package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// #region client-struct
// ObservationClient fetches domain records from a remote observation
// service. It implements orchestrator.ObservationProvider.
type ObservationClient struct {
	conn    grpc.ClientConnInterface
	closer  func() error
	timeout time.Duration
}

var _ orchestrator.ObservationProvider = (*ObservationClient)(nil)

// #endregion client-struct

// #region constructor
// NewObservationClient connects to the observation gRPC server. timeout
// bounds each Observe call; zero leaves only the caller's deadline.
func NewObservationClient(addr string, timeout time.Duration, opts ...grpc.DialOption) (*ObservationClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &ObservationClient{conn: conn, closer: conn.Close, timeout: timeout}, nil
}

// NewObservationClientWithConn wraps an existing connection. The caller
// keeps ownership of conn.
func NewObservationClientWithConn(conn grpc.ClientConnInterface, timeout time.Duration) *ObservationClient {
	return &ObservationClient{conn: conn, timeout: timeout}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client opened it.
func (c *ObservationClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// #endregion close

// #region observe
// Observe requests one domain's record for a candidate. Transport failures
// and missing records are reported as observation.ErrUnavailable.
func (c *ObservationClient) Observe(ctx context.Context, cand orchestrator.Candidate, d observation.Domain) (observation.Record, error) {
	req, err := encodeRequest(cand, d)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ObserveMethod, req, resp); err != nil {
		return nil, fmt.Errorf("%w: observe %s for %s: %s", observation.ErrUnavailable, d, cand.ID, describe(err))
	}

	raw, err := json.Marshal(resp.AsMap())
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode %s: %v", observation.ErrUnavailable, d, err)
	}
	rec, err := observation.DecodeRecord(d, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", observation.ErrUnavailable, err)
	}
	return rec, nil
}

// describe renders a gRPC status as "code: message".
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		return fmt.Sprintf("%s: %s", s.Code(), s.Message())
	}
	return err.Error()
}

// #endregion observe

// #region wire
func encodeRequest(cand orchestrator.Candidate, d observation.Domain) (*structpb.Struct, error) {
	attrs := make(map[string]any, len(cand.Attributes))
	for k, v := range cand.Attributes {
		attrs[k] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"candidate_id": cand.ID,
		"label":        cand.Label,
		"attributes":   attrs,
		"domain":       string(d),
	})
	if err != nil {
		return nil, fmt.Errorf("encode observe request: %w", err)
	}
	return req, nil
}

func decodeRequest(req *structpb.Struct) (orchestrator.Candidate, observation.Domain, error) {
	fields := req.GetFields()
	cand := orchestrator.Candidate{
		ID:    fields["candidate_id"].GetStringValue(),
		Label: fields["label"].GetStringValue(),
	}
	if attrs := fields["attributes"].GetStructValue(); attrs != nil && len(attrs.GetFields()) > 0 {
		cand.Attributes = make(map[string]string, len(attrs.GetFields()))
		for k, v := range attrs.GetFields() {
			cand.Attributes[k] = v.GetStringValue()
		}
	}
	d := observation.Domain(fields["domain"].GetStringValue())
	if cand.ID == "" {
		return cand, d, errors.New("candidate_id is required")
	}
	if !d.Known() {
		return cand, d, fmt.Errorf("%w: %q", observation.ErrUnknownDomain, d)
	}
	return cand, d, nil
}

func encodeRecord(rec observation.Record) (*structpb.Struct, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// statusFor maps provider errors onto gRPC codes.
func statusFor(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, observation.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion wire

package codec

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
)

// ObserveMethod is the full gRPC method name of the Observe call.
const ObserveMethod = "/feasibility.v1.ObservationService/Observe"

// #region service-desc
// ObservationServiceServer is the server-side handler of the observation service.
type ObservationServiceServer interface {
	Observe(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// observationServiceDesc describes the single-method observation service.
// Requests and responses are google.protobuf.Struct so no generated stubs
// are needed on either side.
var observationServiceDesc = grpc.ServiceDesc{
	ServiceName: "feasibility.v1.ObservationService",
	HandlerType: (*ObservationServiceServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Observe",
		Handler:    observeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "feasibility/v1/observation.proto",
}

// #endregion service-desc

// #region server
type observationServer struct {
	provider orchestrator.ObservationProvider
	logger   *slog.Logger
}

// RegisterObservationService serves provider's records on s.
func RegisterObservationService(s *grpc.Server, provider orchestrator.ObservationProvider, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.RegisterService(&observationServiceDesc, &observationServer{
		provider: provider,
		logger:   logger.With("component", "observation-server"),
	})
}

func (s *observationServer) Observe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cand, d, err := decodeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rec, err := s.provider.Observe(ctx, cand, d)
	if err != nil {
		s.logger.Debug("observation failed", "candidate_id", cand.ID, "domain", d, "error", err)
		return nil, statusFor(err)
	}
	if rec == nil || rec.Domain() != d {
		return nil, status.Errorf(codes.Internal, "provider returned wrong record for %s", d)
	}
	resp, err := encodeRecord(rec)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s: %v", d, err)
	}
	return resp, nil
}

func observeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(ObservationServiceServer)
	if interceptor == nil {
		return s.Observe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ObserveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.Observe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion server

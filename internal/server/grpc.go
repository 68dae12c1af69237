package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/callsheet/internal/api"
	"github.com/alfredjeanlab/callsheet/internal/model"
)

// ServiceDesc describes the CallSheet gRPC service. Every method takes and
// returns a google.protobuf.Struct holding the same JSON shape as the HTTP
// API.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodClaim, func(s *CallSheetServer, ctx context.Context, req api.ClaimRequest) (*model.Claim, error) {
			return s.claim(ctx, req)
		}),
		unary(api.MethodSubmit, func(s *CallSheetServer, ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error) {
			return s.submit(ctx, req)
		}),
		unary(api.MethodRelease, func(s *CallSheetServer, ctx context.Context, req api.ReleaseRequest) (*api.Empty, error) {
			return s.release(ctx, req)
		}),
		unary(api.MethodSnapshot, func(s *CallSheetServer, ctx context.Context, _ api.Empty) (*model.Table, error) {
			return s.engine.Snapshot(ctx)
		}),
		unary(api.MethodStats, func(s *CallSheetServer, ctx context.Context, _ api.Empty) (*model.Stats, error) {
			return s.engine.Stats(ctx)
		}),
		unary(api.MethodSheets, func(s *CallSheetServer, ctx context.Context, _ api.Empty) (*api.SheetsResponse, error) {
			return s.sheets(ctx)
		}),
		unary(api.MethodRoster, func(s *CallSheetServer, _ context.Context, req api.RosterRequest) (*api.RosterResponse, error) {
			entries, err := s.roster(req)
			if err != nil {
				return nil, err
			}
			return &api.RosterResponse{Callers: entries}, nil
		}),
		unary(api.MethodJournal, func(s *CallSheetServer, ctx context.Context, req api.JournalRequest) (*api.JournalResponse, error) {
			return s.journalEvents(ctx, req)
		}),
		unary(api.MethodHealth, func(s *CallSheetServer, _ context.Context, _ api.Empty) (*api.HealthResponse, error) {
			return s.health(), nil
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callsheet/v1/callsheet.proto",
}

// unary adapts a typed server method to a Struct-in, Struct-out MethodDesc.
func unary[Req, Resp any](name string, call func(*CallSheetServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, raw any) (any, error) {
				var req Req
				if err := api.FromStruct(raw.(*structpb.Struct), &req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				resp, err := call(srv.(*CallSheetServer), ctx, req)
				if err != nil {
					return nil, grpcError(err)
				}
				out, err := api.ToStruct(resp)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the CallSheet service and reflection, and returns the server
// ready to serve. An empty authToken disables auth.
func NewGRPCServer(s *CallSheetServer, authToken string, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoveryInterceptor,
		LoggingInterceptor,
		AuthInterceptor(authToken),
	))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, s)
	reflection.Register(srv)
	return srv
}

// Package transport exposes dataset histories over gRPC. Messages are
// google.protobuf.Struct values, so the service needs no generated code.
package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "reprolab.HistoryService"

// Full method names.
const (
	MethodGetDataset  = "/" + ServiceName + "/GetDataset"
	MethodListHistory = "/" + ServiceName + "/ListHistory"
	MethodProcess     = "/" + ServiceName + "/Process"
	MethodUndo        = "/" + ServiceName + "/Undo"
	MethodRedo        = "/" + ServiceName + "/Redo"
	MethodAnnotate    = "/" + ServiceName + "/Annotate"
)

// HistoryServer is the server side of the history service.
type HistoryServer interface {
	GetDataset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Annotate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(HistoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(HistoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HistoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the history service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDataset", Handler: unaryHandler(MethodGetDataset, HistoryServer.GetDataset)},
		{MethodName: "ListHistory", Handler: unaryHandler(MethodListHistory, HistoryServer.ListHistory)},
		{MethodName: "Process", Handler: unaryHandler(MethodProcess, HistoryServer.Process)},
		{MethodName: "Undo", Handler: unaryHandler(MethodUndo, HistoryServer.Undo)},
		{MethodName: "Redo", Handler: unaryHandler(MethodRedo, HistoryServer.Redo)},
		{MethodName: "Annotate", Handler: unaryHandler(MethodAnnotate, HistoryServer.Annotate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reprolab/history.proto",
}

// RegisterHistoryServer registers srv with s.
func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

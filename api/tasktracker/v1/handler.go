// Package tasktrackerv1 describes the tasktracker.v1 gRPC services. The
// messages are protobuf Structs; messages.go converts them to Go types.
package tasktrackerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// unary builds the method handler for a Struct-in call on a server of type S.
func unary[S any, Resp any](fullMethod string, call func(S, context.Context, *structpb.Struct) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			resp, err := call(srv.(S), ctx, in)
			return resp, err
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(S), ctx, req.(*structpb.Struct))
			return resp, err
		}
		return interceptor(ctx, in, info, handler)
	}
}

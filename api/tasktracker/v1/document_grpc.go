package tasktrackerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const DocumentServiceName = "tasktracker.v1.DocumentService"

const (
	DocumentService_Query_FullMethodName  = "/tasktracker.v1.DocumentService/Query"
	DocumentService_Watch_FullMethodName  = "/tasktracker.v1.DocumentService/Watch"
	DocumentService_Insert_FullMethodName = "/tasktracker.v1.DocumentService/Insert"
	DocumentService_Mutate_FullMethodName = "/tasktracker.v1.DocumentService/Mutate"
	DocumentService_Remove_FullMethodName = "/tasktracker.v1.DocumentService/Remove"
)

// DocumentServiceServer is the remote document store. Query and Watch take
// a QueryRequest and answer with DocumentLists; Watch sends one complete
// list per change until the client goes away.
type DocumentServiceServer interface {
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Mutate(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Remove(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var DocumentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: unary(DocumentService_Query_FullMethodName, DocumentServiceServer.Query)},
		{MethodName: "Insert", Handler: unary(DocumentService_Insert_FullMethodName, DocumentServiceServer.Insert)},
		{MethodName: "Mutate", Handler: unary(DocumentService_Mutate_FullMethodName, DocumentServiceServer.Mutate)},
		{MethodName: "Remove", Handler: unary(DocumentService_Remove_FullMethodName, DocumentServiceServer.Remove)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       documentServiceWatchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tasktracker/v1/document",
}

func documentServiceWatchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DocumentServiceServer).Watch(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// RegisterDocumentServiceServer registers srv on s.
func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&DocumentService_ServiceDesc, srv)
}

type DocumentServiceClient interface {
	Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
	Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Mutate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Remove(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type documentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDocumentServiceClient creates a DocumentService client.
func NewDocumentServiceClient(cc grpc.ClientConnInterface) DocumentServiceClient {
	return &documentServiceClient{cc: cc}
}

func (c *documentServiceClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DocumentService_Query_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &DocumentService_ServiceDesc.Streams[0], DocumentService_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *documentServiceClient) Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DocumentService_Insert_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Mutate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, DocumentService_Mutate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentServiceClient) Remove(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, DocumentService_Remove_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

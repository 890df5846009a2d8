package tasktrackerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const AuthServiceName = "tasktracker.v1.AuthService"

const (
	AuthService_SignUp_FullMethodName       = "/tasktracker.v1.AuthService/SignUp"
	AuthService_SignIn_FullMethodName       = "/tasktracker.v1.AuthService/SignIn"
	AuthService_SignOut_FullMethodName      = "/tasktracker.v1.AuthService/SignOut"
	AuthService_RefreshToken_FullMethodName = "/tasktracker.v1.AuthService/RefreshToken"
)

// AuthServiceServer is the identity provider.
//
// SignUp and SignIn take Credentials and return a Session. SignOut takes a
// TokenRequest naming an optional refresh token to revoke along with the
// caller's access token. RefreshToken takes a TokenRequest and returns a
// Session with a new access token.
type AuthServiceServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RefreshToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: unary(AuthService_SignUp_FullMethodName, AuthServiceServer.SignUp)},
		{MethodName: "SignIn", Handler: unary(AuthService_SignIn_FullMethodName, AuthServiceServer.SignIn)},
		{MethodName: "SignOut", Handler: unary(AuthService_SignOut_FullMethodName, AuthServiceServer.SignOut)},
		{MethodName: "RefreshToken", Handler: unary(AuthService_RefreshToken_FullMethodName, AuthServiceServer.RefreshToken)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tasktracker/v1/auth",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

type AuthServiceClient interface {
	SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SignIn(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SignOut(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	RefreshToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient creates an AuthService client.
func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc: cc}
}

func (c *authServiceClient) SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthService_SignUp_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) SignIn(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthService_SignIn_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) SignOut(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, AuthService_SignOut_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) RefreshToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthService_RefreshToken_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

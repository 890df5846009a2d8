// internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

// AuthInterceptor requires a valid, unrevoked bearer access token on every
// method that is not public and stores its claims in the request context.
type AuthInterceptor struct {
	tokenManager  *auth.TokenManager
	revoker       auth.Revoker
	publicMethods map[string]bool
}

// NewAuthInterceptor creates a new auth interceptor
func NewAuthInterceptor(tokenManager *auth.TokenManager, revoker auth.Revoker) *AuthInterceptor {
	publicMethods := map[string]bool{
		tasktrackerv1.AuthService_SignUp_FullMethodName:       true,
		tasktrackerv1.AuthService_SignIn_FullMethodName:       true,
		tasktrackerv1.AuthService_RefreshToken_FullMethodName: true,
		"/grpc.health.v1.Health/Check":                        true,
		"/grpc.health.v1.Health/Watch":                        true,
	}

	return &AuthInterceptor{
		tokenManager:  tokenManager,
		revoker:       revoker,
		publicMethods: publicMethods,
	}
}

func (a *AuthInterceptor) isPublic(method string) bool {
	return a.publicMethods[method] || strings.HasPrefix(method, "/grpc.reflection.")
}

// Unary returns a unary server interceptor for authentication
func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		newCtx, err := a.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// Stream returns a stream server interceptor for authentication
func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if a.isPublic(info.FullMethod) {
			return handler(srv, stream)
		}

		newCtx, err := a.authenticate(stream.Context())
		if err != nil {
			return err
		}
		return handler(srv, &contextServerStream{ServerStream: stream, ctx: newCtx})
	}
}

func (a *AuthInterceptor) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	token, err := auth.ExtractTokenFromHeader(authHeaders[0])
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	claims, err := a.tokenManager.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, status.Error(codes.Unauthenticated, "token has expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if a.revoker != nil {
		revoked, err := a.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			log.Printf("[auth] revocation check failed: %v", err)
			return nil, status.Error(codes.Unavailable, "cannot verify token")
		}
		if revoked {
			return nil, status.Error(codes.Unauthenticated, "token has been revoked")
		}
	}

	return WithClaims(ctx, claims), nil
}

package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, time.Time) error { return nil }

func (failingRevoker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func bearerContext(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func TestAuthInterceptor_Unary(t *testing.T) {
	tm := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	pair, err := tm.GenerateTokenPair("user-1", "jane@example.com", "Jane")
	require.NoError(t, err)

	revoker := auth.NewMemoryRevoker()
	revokedPair, err := tm.GenerateTokenPair("user-2", "john@example.com", "John")
	require.NoError(t, err)
	revokedClaims, err := tm.ValidateAccessToken(revokedPair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, revoker.Revoke(context.Background(), revokedClaims.ID, revokedPair.AccessExpiresAt))

	interceptor := NewAuthInterceptor(tm, revoker).Unary()

	tests := []struct {
		name     string
		ctx      context.Context
		method   string
		wantCode codes.Code
		wantUser string
	}{
		{
			name:     "public method without token",
			ctx:      context.Background(),
			method:   tasktrackerv1.AuthService_SignIn_FullMethodName,
			wantCode: codes.OK,
		},
		{
			name:     "reflection is public",
			ctx:      context.Background(),
			method:   "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
			wantCode: codes.OK,
		},
		{
			name:     "missing metadata",
			ctx:      context.Background(),
			method:   tasktrackerv1.DocumentService_Query_FullMethodName,
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "missing header",
			ctx:      metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-other", "1")),
			method:   tasktrackerv1.DocumentService_Query_FullMethodName,
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "refresh token used as access token",
			ctx:      bearerContext(pair.RefreshToken),
			method:   tasktrackerv1.DocumentService_Query_FullMethodName,
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "revoked token",
			ctx:      bearerContext(revokedPair.AccessToken),
			method:   tasktrackerv1.AuthService_SignOut_FullMethodName,
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "valid token",
			ctx:      bearerContext(pair.AccessToken),
			method:   tasktrackerv1.DocumentService_Query_FullMethodName,
			wantCode: codes.OK,
			wantUser: "user-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := func(ctx context.Context, req any) (any, error) {
				gotUser, _ = GetUserIDFromContext(ctx)
				return "ok", nil
			}

			_, err := interceptor(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, tt.wantUser, gotUser)
		})
	}
}

func TestAuthInterceptor_RevocationFailureIsUnavailable(t *testing.T) {
	tm := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	pair, err := tm.GenerateTokenPair("user-1", "jane@example.com", "Jane")
	require.NoError(t, err)

	interceptor := NewAuthInterceptor(tm, failingRevoker{}).Unary()
	_, err = interceptor(bearerContext(pair.AccessToken), nil,
		&grpc.UnaryServerInfo{FullMethod: tasktrackerv1.DocumentService_Query_FullMethodName},
		func(ctx context.Context, req any) (any, error) { return nil, nil })

	assert.Equal(t, codes.Unavailable, status.Code(err))
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func TestAuthInterceptor_StreamCarriesClaims(t *testing.T) {
	tm := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	pair, err := tm.GenerateTokenPair("user-1", "jane@example.com", "Jane")
	require.NoError(t, err)

	interceptor := NewAuthInterceptor(tm, nil).Stream()
	info := &grpc.StreamServerInfo{FullMethod: tasktrackerv1.DocumentService_Watch_FullMethodName, IsServerStream: true}

	var claims *auth.Claims
	err = interceptor(nil, &fakeServerStream{ctx: bearerContext(pair.AccessToken)}, info,
		func(srv any, stream grpc.ServerStream) error {
			claims, _ = GetClaimsFromContext(stream.Context())
			return nil
		})
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "jane@example.com", claims.Email)

	err = interceptor(nil, &fakeServerStream{ctx: context.Background()}, info,
		func(srv any, stream grpc.ServerStream) error { return nil })
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

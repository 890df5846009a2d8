// internal/service/auth_service_test.go
package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/pkg/security"
)

func TestAuthService_SignUp(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		displayName  string
		setup        func(*TestHelpers)
		expectedCode codes.Code
	}{
		{
			name:        "successful sign up",
			email:       "NewUser@Example.com ",
			password:    testPassword,
			displayName: "New User",
		},
		{
			name:         "duplicate email",
			email:        "taken@example.com",
			password:     testPassword,
			setup:        func(h *TestHelpers) { h.CreateTestUser("taken@example.com") },
			expectedCode: codes.AlreadyExists,
		},
		{
			name:         "invalid email",
			email:        "not-an-email",
			password:     testPassword,
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "weak password",
			email:        "weak@example.com",
			password:     "12345",
			expectedCode: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTestHelpers(t)
			if tt.setup != nil {
				tt.setup(h)
			}

			resp, err := h.auth.SignUp(context.Background(), credentials(t, tt.email, tt.password, tt.displayName))
			if tt.expectedCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.expectedCode, status.Code(err))
				return
			}
			require.NoError(t, err)

			session, err := tasktrackerv1.SessionFromProto(resp)
			require.NoError(t, err)
			assert.Equal(t, "newuser@example.com", session.Email)
			assert.Equal(t, "New User", session.DisplayName)
			assert.NotEmpty(t, session.AccessToken)
			assert.NotEmpty(t, session.RefreshToken)
			assert.Greater(t, session.ExpiresIn, int64(0))

			stored, err := h.users.GetByID(context.Background(), session.UserID)
			require.NoError(t, err)
			require.NotNil(t, stored.RefreshToken)
			assert.Equal(t, session.RefreshToken, *stored.RefreshToken)
			assert.Contains(t, h.GetSecurityEventTypes(session.UserID), security.EventTypeSignUp)
		})
	}
}

func TestAuthService_SignIn(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")

	resp, err := h.auth.SignIn(context.Background(), credentials(t, "JANE@example.com", testPassword, ""))
	require.NoError(t, err)
	session, err := tasktrackerv1.SessionFromProto(resp)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	claims, err := h.tokenManager.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, security.EventTypeLoginSuccess, h.GetSecurityEventTypes(user.ID)[0])

	_, err = h.auth.SignIn(context.Background(), credentials(t, "nobody@example.com", testPassword, ""))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.auth.SignIn(context.Background(), credentials(t, "jane@example.com", "wrong-password", ""))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestAuthService_SignInLocksAfterRepeatedFailures(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.auth.SignIn(ctx, credentials(t, "jane@example.com", "wrong-password", ""))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	}

	_, err := h.auth.SignIn(ctx, credentials(t, "jane@example.com", "wrong-password", ""))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Contains(t, err.Error(), "account locked")

	// Even the right password is refused while locked.
	_, err = h.auth.SignIn(ctx, credentials(t, "jane@example.com", testPassword, ""))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	assert.Contains(t, h.GetSecurityEventTypes(user.ID), security.EventTypeAccountLocked)
}

func TestAuthService_RefreshToken(t *testing.T) {
	h := NewTestHelpers(t)
	h.CreateTestUser("jane@example.com")
	ctx := context.Background()

	resp, err := h.auth.SignIn(ctx, credentials(t, "jane@example.com", testPassword, ""))
	require.NoError(t, err)
	first, err := tasktrackerv1.SessionFromProto(resp)
	require.NoError(t, err)

	resp, err = h.auth.RefreshToken(ctx, tokenRequest(t, first.RefreshToken))
	require.NoError(t, err)
	second, err := tasktrackerv1.SessionFromProto(resp)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The replaced refresh token is no longer accepted.
	_, err = h.auth.RefreshToken(ctx, tokenRequest(t, first.RefreshToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.auth.RefreshToken(ctx, tokenRequest(t, second.AccessToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.auth.RefreshToken(ctx, tokenRequest(t, ""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAuthService_SignOut(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")

	resp, err := h.auth.SignIn(context.Background(), credentials(t, "jane@example.com", testPassword, ""))
	require.NoError(t, err)
	session, err := tasktrackerv1.SessionFromProto(resp)
	require.NoError(t, err)

	claims, err := h.tokenManager.ValidateAccessToken(session.AccessToken)
	require.NoError(t, err)
	ctx := middleware.WithClaims(context.Background(), claims)

	_, err = h.auth.SignOut(ctx, tokenRequest(t, session.RefreshToken))
	require.NoError(t, err)

	revoked, err := h.revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	stored, err := h.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)

	_, err = h.auth.RefreshToken(context.Background(), tokenRequest(t, session.RefreshToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, security.EventTypeLogout, h.GetSecurityEventTypes(user.ID)[0])

	_, err = h.auth.SignOut(context.Background(), tokenRequest(t, ""))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

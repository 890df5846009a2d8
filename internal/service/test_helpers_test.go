// internal/service/test_helpers_test.go
package service

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/config"
	"github.com/gurkanbulca/tasktracker/internal/database"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

const testPassword = "SecurePass123"

// TestHelpers wires an AuthService to a throwaway SQLite database.
type TestHelpers struct {
	t               *testing.T
	users           *repository.UserRepository
	security        *SecurityService
	tokenManager    *auth.TokenManager
	passwordManager *auth.PasswordManager
	revoker         *auth.MemoryRevoker
	auth            *AuthService
}

func createTestSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		MaxLoginAttempts:       3,
		AccountLockoutDuration: 15 * time.Minute,
		BcryptCost:             bcrypt.MinCost,
		MinPasswordLength:      6,
	}
}

func NewTestHelpers(t *testing.T) *TestHelpers {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	h := &TestHelpers{
		t:               t,
		users:           repository.NewUserRepository(db),
		security:        NewSecurityService(repository.NewSecurityEventRepository(db)),
		tokenManager:    auth.NewTokenManager("test-access", "test-refresh", 15*time.Minute, 24*time.Hour),
		passwordManager: auth.NewPasswordManager(auth.DefaultPasswordPolicy(), bcrypt.MinCost),
		revoker:         auth.NewMemoryRevoker(),
	}
	h.auth = NewAuthService(h.users, h.tokenManager, h.passwordManager, h.revoker,
		NewSecurityLogger(h.security), createTestSecurityConfig())
	return h
}

// CreateTestUser stores an account with testPassword.
func (h *TestHelpers) CreateTestUser(email string) *repository.User {
	hash, err := h.passwordManager.HashPassword(testPassword)
	require.NoError(h.t, err)

	user, err := h.users.Create(context.Background(), repository.UserInput{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Test User",
	})
	require.NoError(h.t, err)
	return user
}

// AuthContext returns a context authenticated as user, as the auth
// interceptor would build it.
func (h *TestHelpers) AuthContext(user *repository.User) context.Context {
	pair, err := h.tokenManager.GenerateTokenPair(user.ID, user.Email, user.DisplayName)
	require.NoError(h.t, err)
	claims, err := h.tokenManager.ValidateAccessToken(pair.AccessToken)
	require.NoError(h.t, err)
	return middleware.WithClaims(context.Background(), claims)
}

// ContextForUserID is AuthContext for a bare user id.
func ContextForUserID(userID string) context.Context {
	return middleware.WithClaims(context.Background(), &auth.Claims{UserID: userID})
}

// GetSecurityEventTypes lists the recorded event types of userID, newest first.
func (h *TestHelpers) GetSecurityEventTypes(userID string) []string {
	events, err := h.security.GetUserEvents(context.Background(), userID, 0)
	require.NoError(h.t, err)
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	return types
}

func credentials(t *testing.T, email, password, displayName string) *structpb.Struct {
	t.Helper()
	req, err := tasktrackerv1.Credentials{Email: email, Password: password, DisplayName: displayName}.Proto()
	require.NoError(t, err)
	return req
}

func tokenRequest(t *testing.T, refreshToken string) *structpb.Struct {
	t.Helper()
	req, err := tasktrackerv1.TokenRequest{RefreshToken: refreshToken}.Proto()
	require.NoError(t, err)
	return req
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

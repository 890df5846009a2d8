// internal/service/auth_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/config"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

// AuthService is the identity provider: it creates accounts, signs users in
// and out, and refreshes access tokens.
type AuthService struct {
	users           *repository.UserRepository
	tokenManager    *auth.TokenManager
	passwordManager *auth.PasswordManager
	revoker         auth.Revoker
	securityLogger  *SecurityLogger
	securityConfig  config.SecurityConfig
	now             func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	users *repository.UserRepository,
	tokenManager *auth.TokenManager,
	passwordManager *auth.PasswordManager,
	revoker auth.Revoker,
	securityLogger *SecurityLogger,
	securityConfig config.SecurityConfig,
) *AuthService {
	return &AuthService{
		users:           users,
		tokenManager:    tokenManager,
		passwordManager: passwordManager,
		revoker:         revoker,
		securityLogger:  securityLogger,
		securityConfig:  securityConfig,
		now:             time.Now,
	}
}

// SignUp creates an account and signs it in.
func (s *AuthService) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	creds, err := tasktrackerv1.CredentialsFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	email := normalizeEmail(creds.Email)

	if err := auth.ValidateEmail(email); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.passwordManager.ValidatePassword(creds.Password); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := auth.ValidateDisplayName(creds.DisplayName); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	hash, err := s.passwordManager.HashPassword(creds.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to hash password")
	}

	user, err := s.users.Create(ctx, repository.UserInput{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(creds.DisplayName),
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, status.Error(codes.AlreadyExists, "email already registered")
		}
		log.Printf("[auth] create user: %v", err)
		return nil, status.Error(codes.Internal, "failed to create user")
	}

	resp, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.securityLogger.LogSignUp(ctx, user.ID)
	return resp, nil
}

// SignIn checks the password and issues a token pair. Repeated failures
// lock the account for the configured duration.
func (s *AuthService) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	creds, err := tasktrackerv1.CredentialsFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.securityLogger.LogLoginFailed(ctx, "", email, "user not found")
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		log.Printf("[auth] find user: %v", err)
		return nil, status.Error(codes.Internal, "failed to find user")
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, status.Error(codes.PermissionDenied,
			fmt.Sprintf("account is locked until %s", user.AccountLockedUntil.Format(time.RFC3339)))
	}

	if err := s.passwordManager.ComparePassword(user.PasswordHash, creds.Password); err != nil {
		return nil, s.failLogin(ctx, user, now)
	}

	resp, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.securityLogger.LogLoginSuccess(ctx, user.ID)
	return resp, nil
}

func (s *AuthService) failLogin(ctx context.Context, user *repository.User, now time.Time) error {
	maxAttempts := s.securityConfig.MaxLoginAttempts
	attempts := user.FailedLoginAttempts + 1

	var lockUntil *time.Time
	if maxAttempts > 0 && attempts >= maxAttempts {
		until := now.Add(s.securityConfig.AccountLockoutDuration).UTC()
		lockUntil = &until
	}

	if _, err := s.users.RecordFailedLogin(ctx, user.ID, lockUntil); err != nil {
		log.Printf("[auth] failed to update failed login attempts: %v", err)
	}

	if lockUntil != nil {
		s.securityLogger.LogAccountLocked(ctx, user.ID, fmt.Sprintf("max login attempts (%d) exceeded", maxAttempts))
		return status.Error(codes.PermissionDenied,
			fmt.Sprintf("account locked due to %d failed login attempts. Try again after %s",
				maxAttempts, s.securityConfig.AccountLockoutDuration))
	}

	s.securityLogger.LogLoginFailed(ctx, user.ID, user.Email,
		fmt.Sprintf("invalid password (attempt %d of %d)", attempts, maxAttempts))
	return status.Error(codes.Unauthenticated, "invalid credentials")
}

// SignOut revokes the caller's access token and, when given, the refresh
// token of the same user.
func (s *AuthService) SignOut(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	claims, ok := middleware.GetClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "user not authenticated")
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		log.Printf("[auth] revoke access token: %v", err)
		return nil, status.Error(codes.Unavailable, "failed to revoke token")
	}

	tokenReq, err := tasktrackerv1.TokenRequestFromProto(req)
	if err == nil && tokenReq.RefreshToken != "" {
		if refresh, err := s.tokenManager.ValidateRefreshToken(tokenReq.RefreshToken); err == nil && refresh.UserID == claims.UserID {
			if err := s.revoker.Revoke(ctx, refresh.ID, refresh.Expiry()); err != nil {
				log.Printf("[auth] revoke refresh token: %v", err)
			}
		}
	}

	// The stored refresh token dies with the session even when none was sent.
	if err := s.users.ClearRefreshToken(ctx, claims.UserID); err != nil {
		log.Printf("[auth] failed to clear refresh token for user %s: %v", claims.UserID, err)
	}

	s.securityLogger.LogLogout(ctx, claims.UserID)
	return &emptypb.Empty{}, nil
}

// RefreshToken exchanges the current refresh token for a new token pair.
func (s *AuthService) RefreshToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokenReq, err := tasktrackerv1.TokenRequestFromProto(req)
	if err != nil || tokenReq.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	claims, err := s.tokenManager.ValidateRefreshToken(tokenReq.RefreshToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		log.Printf("[auth] revocation check failed: %v", err)
		return nil, status.Error(codes.Unavailable, "cannot verify token")
	}
	if revoked {
		return nil, status.Error(codes.Unauthenticated, "refresh token has been revoked")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
		}
		return nil, status.Error(codes.Internal, "failed to find user")
	}
	if user.RefreshToken == nil || *user.RefreshToken != tokenReq.RefreshToken {
		s.securityLogger.LogSuspiciousActivity(ctx, user.ID, "Refresh with a token that is no longer current")
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	}
	if user.RefreshTokenExpiresAt != nil && user.RefreshTokenExpiresAt.Before(s.now()) {
		return nil, status.Error(codes.Unauthenticated, "refresh token expired")
	}

	pair, err := s.tokenManager.GenerateTokenPair(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate tokens")
	}
	if err := s.users.RotateRefreshToken(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return nil, status.Error(codes.Internal, "failed to update refresh token")
	}

	s.securityLogger.LogTokenRefreshed(ctx, user.ID)
	return sessionProto(user, pair)
}

// startSession issues a token pair for user and stores the refresh token.
func (s *AuthService) startSession(ctx context.Context, user *repository.User) (*structpb.Struct, error) {
	pair, err := s.tokenManager.GenerateTokenPair(user.ID, user.Email, user.DisplayName)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to generate tokens")
	}

	clientInfo := middleware.GetClientInfoFromContext(ctx)
	if err := s.users.RecordLogin(ctx, user.ID, pair.RefreshToken, pair.RefreshExpiresAt, clientInfo.IPAddress); err != nil {
		log.Printf("[auth] record login: %v", err)
		return nil, status.Error(codes.Internal, "failed to save refresh token")
	}
	return sessionProto(user, pair)
}

func sessionProto(user *repository.User, pair auth.TokenPair) (*structpb.Struct, error) {
	resp, err := tasktrackerv1.Session{
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn(),
	}.Proto()
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode session")
	}
	return resp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

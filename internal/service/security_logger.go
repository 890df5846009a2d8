// internal/service/security_logger.go
package service

import (
	"context"
	"log"

	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/pkg/security"
)

// SecurityLogger records auth events with the caller's address and user
// agent. A failure to record is logged and never fails the request.
type SecurityLogger struct {
	securityService *SecurityService
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(securityService *SecurityService) *SecurityLogger {
	return &SecurityLogger{securityService: securityService}
}

// LogFromContext records an event with the client info found in ctx
func (sl *SecurityLogger) LogFromContext(ctx context.Context, userID, eventType, description, severity string) error {
	clientInfo := middleware.GetClientInfoFromContext(ctx)
	return sl.securityService.LogUserSecurityEvent(ctx, userID, eventType, description, severity,
		clientInfo.IPAddress, clientInfo.UserAgent)
}

func (sl *SecurityLogger) record(ctx context.Context, userID, eventType, description, severity string) {
	if sl == nil {
		return
	}
	if err := sl.LogFromContext(ctx, userID, eventType, description, severity); err != nil {
		log.Printf("[security] failed to record %s event: %v", eventType, err)
	}
}

// LogSignUp logs account creation
func (sl *SecurityLogger) LogSignUp(ctx context.Context, userID string) {
	sl.record(ctx, userID, security.EventTypeSignUp, "Account created", security.SeverityLow)
}

// LogLoginSuccess logs successful login
func (sl *SecurityLogger) LogLoginSuccess(ctx context.Context, userID string) {
	sl.record(ctx, userID, security.EventTypeLoginSuccess, "User successfully logged in", security.SeverityLow)
}

// LogLoginFailed records a failed sign-in; userID is empty for unknown emails.
func (sl *SecurityLogger) LogLoginFailed(ctx context.Context, userID, email, reason string) {
	sl.record(ctx, userID, security.EventTypeLoginFailed, "Login failed for "+email+": "+reason, security.SeverityMedium)
}

// LogLogout logs logout
func (sl *SecurityLogger) LogLogout(ctx context.Context, userID string) {
	sl.record(ctx, userID, security.EventTypeLogout, "User signed out", security.SeverityLow)
}

// LogTokenRefreshed logs token refresh
func (sl *SecurityLogger) LogTokenRefreshed(ctx context.Context, userID string) {
	sl.record(ctx, userID, security.EventTypeTokenRefreshed, "Access token refreshed", security.SeverityLow)
}

// LogAccountLocked logs account lockout
func (sl *SecurityLogger) LogAccountLocked(ctx context.Context, userID, reason string) {
	sl.record(ctx, userID, security.EventTypeAccountLocked, "Account locked: "+reason, security.SeverityHigh)
}

// LogSuspiciousActivity logs suspicious activity
func (sl *SecurityLogger) LogSuspiciousActivity(ctx context.Context, userID, description string) {
	sl.record(ctx, userID, security.EventTypeSuspiciousActivity, description, security.SeverityMedium)
}

// internal/service/security_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/pkg/security"
)

// SecurityService records and retrieves account security events.
type SecurityService struct {
	events *repository.SecurityEventRepository
}

// NewSecurityService creates a new security service
func NewSecurityService(events *repository.SecurityEventRepository) *SecurityService {
	return &SecurityService{events: events}
}

// LogSecurityEventRequest describes one event. An empty UserID records a
// system event.
type LogSecurityEventRequest struct {
	UserID      string
	EventType   string
	Severity    string
	Description string
	IPAddress   string
	UserAgent   string
}

// LogSecurityEvent records a security event
func (s *SecurityService) LogSecurityEvent(ctx context.Context, req *LogSecurityEventRequest) error {
	if err := security.Validate(req.EventType, req.Severity); err != nil {
		return fmt.Errorf("invalid security event: %w", err)
	}

	ev := &repository.SecurityEvent{
		EventType:   req.EventType,
		Severity:    req.Severity,
		Description: req.Description,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	}
	if req.UserID != "" {
		userID := req.UserID
		ev.UserID = &userID
	}

	if err := s.events.Create(ctx, ev); err != nil {
		return fmt.Errorf("save security event: %w", err)
	}
	return nil
}

// LogUserSecurityEvent records an event for a user
func (s *SecurityService) LogUserSecurityEvent(ctx context.Context, userID, eventType, description, severity, ipAddress, userAgent string) error {
	return s.LogSecurityEvent(ctx, &LogSecurityEventRequest{
		UserID:      userID,
		EventType:   eventType,
		Severity:    severity,
		Description: description,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
	})
}

// LogSystemSecurityEvent records an event not tied to a user
func (s *SecurityService) LogSystemSecurityEvent(ctx context.Context, eventType, description, severity, ipAddress, userAgent string) error {
	return s.LogUserSecurityEvent(ctx, "", eventType, description, severity, ipAddress, userAgent)
}

// GetUserEvents returns the latest events of userID, newest first.
func (s *SecurityService) GetUserEvents(ctx context.Context, userID string, limit int) ([]repository.SecurityEvent, error) {
	events, err := s.events.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get security events: %w", err)
	}
	return events, nil
}

// PurgeEvents drops events older than retention.
func (s *SecurityService) PurgeEvents(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.events.DeleteBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge security events: %w", err)
	}
	return n, nil
}

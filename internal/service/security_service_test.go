package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/pkg/security"
)

func TestSecurityService_LogSecurityEvent(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *LogSecurityEventRequest
		wantErr bool
	}{
		{
			name: "user event",
			req:  &LogSecurityEventRequest{UserID: user.ID, EventType: security.EventTypeLoginSuccess, Severity: security.SeverityLow},
		},
		{
			name: "system event",
			req:  &LogSecurityEventRequest{EventType: security.EventTypeLoginFailed, Severity: security.SeverityMedium},
		},
		{
			name:    "unknown event type",
			req:     &LogSecurityEventRequest{EventType: "password_changed", Severity: security.SeverityLow},
			wantErr: true,
		},
		{
			name:    "unknown severity",
			req:     &LogSecurityEventRequest{EventType: security.EventTypeLogout, Severity: "urgent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.security.LogSecurityEvent(ctx, tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t, []string{security.EventTypeLoginSuccess}, h.GetSecurityEventTypes(user.ID))
}

func TestSecurityLogger_RecordsClientInfo(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")
	logger := NewSecurityLogger(h.security)

	ctx := context.WithValue(context.Background(), middleware.ContextKeyIPAddress, "10.1.2.3")
	ctx = context.WithValue(ctx, middleware.ContextKeyUserAgent, "tasktracker-cli")
	logger.LogLogout(ctx, user.ID)

	events, err := h.security.GetUserEvents(context.Background(), user.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, security.EventTypeLogout, events[0].EventType)
	assert.Equal(t, "10.1.2.3", events[0].IPAddress)
	assert.Equal(t, "tasktracker-cli", events[0].UserAgent)
}

func TestSecurityLogger_NilIsSilent(t *testing.T) {
	var logger *SecurityLogger
	assert.NotPanics(t, func() { logger.LogLoginSuccess(context.Background(), "u1") })
}

func TestSecurityService_PurgeEvents(t *testing.T) {
	h := NewTestHelpers(t)
	user := h.CreateTestUser("jane@example.com")
	ctx := context.Background()
	require.NoError(t, h.security.LogUserSecurityEvent(ctx, user.ID, security.EventTypeLogout, "", security.SeverityLow, "", ""))

	n, err := h.security.PurgeEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.security.PurgeEvents(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, h.GetSecurityEventTypes(user.ID))
}

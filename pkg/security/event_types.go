// Package security names the account events recorded by the auth service.
package security

import "fmt"

// EventType constants for string-based event type handling
const (
	EventTypeSignUp             = "sign_up"
	EventTypeLoginSuccess       = "login_success"
	EventTypeLoginFailed        = "login_failed"
	EventTypeLogout             = "logout"
	EventTypeTokenRefreshed     = "token_refreshed"
	EventTypeAccountLocked      = "account_locked"
	EventTypeSecurityAlert      = "security_alert"
	EventTypeSuspiciousActivity = "suspicious_activity"
)

// Severity constants for string-based severity handling
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ValidEventTypes returns all valid event type strings
func ValidEventTypes() []string {
	return []string{
		EventTypeSignUp,
		EventTypeLoginSuccess,
		EventTypeLoginFailed,
		EventTypeLogout,
		EventTypeTokenRefreshed,
		EventTypeAccountLocked,
		EventTypeSecurityAlert,
		EventTypeSuspiciousActivity,
	}
}

// ValidSeverities returns all valid severity strings
func ValidSeverities() []string {
	return []string{
		SeverityLow,
		SeverityMedium,
		SeverityHigh,
		SeverityCritical,
	}
}

// IsValidEventType checks if the event type string is valid
func IsValidEventType(eventType string) bool {
	for _, t := range ValidEventTypes() {
		if t == eventType {
			return true
		}
	}
	return false
}

// IsValidSeverity checks if the severity string is valid
func IsValidSeverity(severity string) bool {
	for _, s := range ValidSeverities() {
		if s == severity {
			return true
		}
	}
	return false
}

// Validate checks an event type and severity pair.
func Validate(eventType, severity string) error {
	if !IsValidEventType(eventType) {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	if !IsValidSeverity(severity) {
		return fmt.Errorf("unknown severity: %s", severity)
	}
	return nil
}

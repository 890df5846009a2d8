package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SecurityEvent is one recorded account event. UserID is nil for events
// that could not be tied to an account, e.g. a login for an unknown email.
type SecurityEvent struct {
	ID          string    `db:"id"`
	UserID      *string   `db:"user_id"`
	EventType   string    `db:"event_type"`
	Severity    string    `db:"severity"`
	Description string    `db:"description"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
	CreatedAt   time.Time `db:"created_at"`
}

type SecurityEventRepository struct {
	db *sqlx.DB
}

// NewSecurityEventRepository creates a new security event repository
func NewSecurityEventRepository(db *sqlx.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Create stores ev, filling in its id and timestamp when empty.
func (r *SecurityEventRepository) Create(ctx context.Context, ev *SecurityEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	query := r.db.Rebind(`INSERT INTO security_events
		(id, user_id, event_type, severity, description, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.UserID, ev.EventType, ev.Severity, ev.Description, ev.IPAddress, ev.UserAgent, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// ListByUser returns the most recent events of userID, newest first.
func (r *SecurityEventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []SecurityEvent
	query := r.db.Rebind(`SELECT id, user_id, event_type, severity, description, ip_address, user_agent, created_at
		FROM security_events WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &events, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	return events, nil
}

// DeleteBefore removes events recorded before cutoff and reports how many went.
func (r *SecurityEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM security_events WHERE created_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete security events: %w", err)
	}
	return res.RowsAffected()
}

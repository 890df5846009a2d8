package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// User is an account row.
type User struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	DisplayName           string     `db:"display_name"`
	RefreshToken          *string    `db:"refresh_token"`
	RefreshTokenExpiresAt *time.Time `db:"refresh_token_expires_at"`
	FailedLoginAttempts   int        `db:"failed_login_attempts"`
	AccountLockedUntil    *time.Time `db:"account_locked_until"`
	LastLoginAt           *time.Time `db:"last_login_at"`
	LastLoginIP           string     `db:"last_login_ip"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}

// UserInput is the data needed to create an account.
type UserInput struct {
	Email        string
	PasswordHash string
	DisplayName  string
}

const userColumns = `id, email, password_hash, display_name, refresh_token, refresh_token_expires_at,
	failed_login_attempts, account_locked_until, last_login_at, last_login_ip, created_at, updated_at`

// UserRepository stores accounts with sqlx. Queries are written with ? and
// rebound for the driver, so the same code serves PostgreSQL and SQLite.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account
func (r *UserRepository) Create(ctx context.Context, in UserInput) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: in.PasswordHash,
		DisplayName:  in.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := r.db.Rebind(`INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt, u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ExistsByEmail checks whether an account uses email
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`)
	if err := r.db.GetContext(ctx, &n, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// GetByEmail finds an account by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID finds an account by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// RecordFailedLogin increments the failed attempt counter and, when
// lockUntil is set, locks the account. It returns the new attempt count.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, lockUntil *time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin failed login: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.db.Rebind(`UPDATE users SET failed_login_attempts = failed_login_attempts + 1,
		account_locked_until = COALESCE(?, account_locked_until), updated_at = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, query, lockUntil, time.Now().UTC(), id); err != nil {
		return 0, fmt.Errorf("record failed login: %w", err)
	}

	var attempts int
	if err := tx.GetContext(ctx, &attempts, r.db.Rebind(`SELECT failed_login_attempts FROM users WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("read failed logins: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit failed login: %w", err)
	}
	return attempts, nil
}

// RecordLogin stores the session's refresh token, clears any lockout and
// resets the failed attempt counter.
func (r *UserRepository) RecordLogin(ctx context.Context, id, refreshToken string, expiresAt time.Time, ip string) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`UPDATE users SET refresh_token = ?, refresh_token_expires_at = ?,
		failed_login_attempts = 0, account_locked_until = NULL, last_login_at = ?, last_login_ip = ?, updated_at = ?
		WHERE id = ?`)
	return r.execOne(ctx, "record login", query, refreshToken, expiresAt.UTC(), now, ip, now, id)
}

// RotateRefreshToken replaces the stored refresh token.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, refreshToken string, expiresAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET refresh_token = ?, refresh_token_expires_at = ?, updated_at = ? WHERE id = ?`)
	return r.execOne(ctx, "rotate refresh token", query, refreshToken, expiresAt.UTC(), time.Now().UTC(), id)
}

// ClearRefreshToken ends the stored session. Clearing an unknown user is not an error.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE users SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	if err := r.db.GetContext(ctx, &u, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isUniqueViolation matches the duplicate key errors of lib/pq and sqlite3.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

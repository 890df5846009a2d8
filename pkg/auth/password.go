// pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidDisplayName = errors.New("invalid display name")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// PasswordPolicy lists the strength rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

// DefaultPasswordPolicy matches the sign-up rules of the hosted provider the
// app was built against: six characters, no class requirements.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 6}
}

// PasswordManager handles password hashing and validation
type PasswordManager struct {
	policy PasswordPolicy
	cost   int
}

// NewPasswordManager creates a password manager. A cost of 0 uses bcrypt.DefaultCost.
func NewPasswordManager(policy PasswordPolicy, cost int) *PasswordManager {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordManager{policy: policy, cost: cost}
}

// HashPassword validates and hashes a password using bcrypt
func (pm *PasswordManager) HashPassword(password string) (string, error) {
	if err := pm.ValidatePassword(password); err != nil {
		return "", err
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword compares a password with a hash
func (pm *PasswordManager) ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword checks a password against the policy
func (pm *PasswordManager) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < pm.policy.MinLength {
		return fmt.Errorf("%w: minimum length is %d characters", ErrWeakPassword, pm.policy.MinLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return fmt.Errorf("%w: maximum length is 72 bytes", ErrWeakPassword)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if pm.policy.RequireUpper && !hasUpper {
		return fmt.Errorf("%w: must contain at least one uppercase letter", ErrWeakPassword)
	}
	if pm.policy.RequireLower && !hasLower {
		return fmt.Errorf("%w: must contain at least one lowercase letter", ErrWeakPassword)
	}
	if pm.policy.RequireNumber && !hasNumber {
		return fmt.Errorf("%w: must contain at least one number", ErrWeakPassword)
	}
	if pm.policy.RequireSpecial && !hasSpecial {
		return fmt.Errorf("%w: must contain at least one special character", ErrWeakPassword)
	}
	return nil
}

// ValidateEmail validates an email address format
func ValidateEmail(email string) error {
	if len(email) > 255 {
		return fmt.Errorf("%w: address too long", ErrInvalidEmail)
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateDisplayName accepts an empty name or up to 100 printable characters.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("%w: must not exceed 100 characters", ErrInvalidDisplayName)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidDisplayName)
		}
	}
	return nil
}

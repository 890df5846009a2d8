package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordManager_HashAndCompare(t *testing.T) {
	pm := NewPasswordManager(DefaultPasswordPolicy(), bcrypt.MinCost)

	hash, err := pm.HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, pm.ComparePassword(hash, "secret1"))
	assert.Error(t, pm.ComparePassword(hash, "secret2"))
}

func TestPasswordManager_ValidatePassword(t *testing.T) {
	strict := PasswordPolicy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireNumber: true, RequireSpecial: true}

	tests := []struct {
		name     string
		policy   PasswordPolicy
		password string
		wantErr  bool
	}{
		{name: "default accepts six characters", policy: DefaultPasswordPolicy(), password: "abcdef"},
		{name: "default rejects five", policy: DefaultPasswordPolicy(), password: "abcde", wantErr: true},
		{name: "too long for bcrypt", policy: DefaultPasswordPolicy(), password: strings.Repeat("a", 73), wantErr: true},
		{name: "strict ok", policy: strict, password: "Secure#Pass1"},
		{name: "strict missing upper", policy: strict, password: "secure#pass1", wantErr: true},
		{name: "strict missing number", policy: strict, password: "Secure#Pass", wantErr: true},
		{name: "strict missing special", policy: strict, password: "SecurePass1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPasswordManager(tt.policy, bcrypt.MinCost).ValidatePassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{email: "jane@example.com"},
		{email: "jane.doe+tasks@mail.example.org"},
		{email: "jane@", wantErr: true},
		{email: "@example.com", wantErr: true},
		{email: "jane example.com", wantErr: true},
		{email: strings.Repeat("a", 250) + "@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName(""))
	assert.NoError(t, ValidateDisplayName("Jane Doe"))
	assert.ErrorIs(t, ValidateDisplayName(strings.Repeat("x", 101)), ErrInvalidDisplayName)
	assert.ErrorIs(t, ValidateDisplayName("Jane\x00"), ErrInvalidDisplayName)
}

package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/tasktracker/internal/identity/identitytest"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

func TestSession_Login(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		secret     string
		failWith   error
		wantErr    error
		wantPrefix string
	}{
		{
			name:   "successful login",
			email:  "jane@example.com",
			secret: "SecurePass123",
		},
		{
			name:       "wrong password",
			email:      "jane@example.com",
			secret:     "nope",
			wantErr:    identitytest.ErrInvalidCredentials,
			wantPrefix: "Failed to log in: ",
		},
		{
			name:       "network failure",
			email:      "jane@example.com",
			secret:     "SecurePass123",
			failWith:   errors.New("connection refused"),
			wantPrefix: "Failed to log in: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := identitytest.NewProvider()
			provider.AddAccount("jane@example.com", "SecurePass123")
			if tt.failWith != nil {
				provider.FailNext(tt.failWith)
			}
			session := NewSession(provider)
			defer session.Close()

			id, err := session.Login(context.Background(), tt.email, tt.secret)
			if tt.wantPrefix != "" {
				require.Error(t, err)
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, OpLogin, authErr.Op)
				assert.Contains(t, err.Error(), tt.wantPrefix)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, session.Current())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", id.Email)
			assert.Equal(t, id.ID, session.Current().ID)
		})
	}
}

func TestSession_SignupDuplicate(t *testing.T) {
	provider := identitytest.NewProvider()
	provider.AddAccount("taken@example.com", "SecurePass123")
	session := NewSession(provider)
	defer session.Close()

	_, err := session.Signup(context.Background(), "taken@example.com", "SecurePass123")

	require.Error(t, err)
	assert.ErrorIs(t, err, identitytest.ErrEmailInUse)
	assert.Contains(t, err.Error(), "Failed to create account: ")
	assert.Nil(t, session.Current())
}

// passwordOnly hides the display-name sign-up of the wrapped provider.
type passwordOnly struct{ Provider }

func TestSession_SignupWithName(t *testing.T) {
	tests := []struct {
		name        string
		plain       bool
		email       string
		displayName string
		wantName    string
		wantErr     error
	}{
		{
			name:        "display name reaches the provider",
			email:       "new@example.com",
			displayName: "Jane Doe",
			wantName:    "Jane Doe",
		},
		{
			name:  "empty name uses the password sign-up",
			email: "new@example.com",
		},
		{
			name:        "provider without profiles ignores the name",
			plain:       true,
			email:       "new@example.com",
			displayName: "Jane Doe",
		},
		{
			name:        "duplicate email",
			email:       "taken@example.com",
			displayName: "Jane Doe",
			wantErr:     identitytest.ErrEmailInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := identitytest.NewProvider()
			provider.AddAccount("taken@example.com", "SecurePass123")
			var p Provider = provider
			if tt.plain {
				p = passwordOnly{provider}
			}
			session := NewSession(p)
			defer session.Close()

			id, err := session.SignupWithName(context.Background(), tt.email, "SecurePass123", tt.displayName)
			if tt.wantErr != nil {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, OpSignup, authErr.Op)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "Failed to create account: ")
				assert.Nil(t, session.Current())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, id.DisplayName)
			require.NotNil(t, session.Current())
			assert.Equal(t, tt.wantName, session.Current().DisplayName)
		})
	}
}

func TestSession_TransitionsPropagateSynchronously(t *testing.T) {
	provider := identitytest.NewProvider()
	session := NewSession(provider)
	defer session.Close()

	var seen []*models.Identity
	cancel := session.OnChange(func(id *models.Identity) {
		seen = append(seen, id)
	})
	defer cancel()

	ctx := context.Background()
	id, err := session.Signup(ctx, "new@example.com", "SecurePass123")
	require.NoError(t, err)

	// The listener ran before Signup returned, exactly once despite the
	// provider also reporting the change.
	require.Len(t, seen, 1)
	assert.Equal(t, id.ID, seen[0].ID)

	require.NoError(t, session.Logout(ctx))
	require.Len(t, seen, 2)
	assert.Nil(t, seen[1])
	assert.Nil(t, session.Current())
}

func TestSession_ProviderDrivenChange(t *testing.T) {
	provider := identitytest.NewProvider()
	provider.AddAccount("jane@example.com", "SecurePass123")
	session := NewSession(provider)
	defer session.Close()

	var transitions int
	session.OnChange(func(*models.Identity) { transitions++ })

	// A sign-in reported by the provider alone (e.g. a restored session)
	// still reaches the session.
	_, err := provider.SignInWithPassword(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	assert.Equal(t, 1, transitions)
	require.NotNil(t, session.Current())
	assert.Equal(t, "jane@example.com", session.Current().Email)
}

func TestSession_LogoutErrorStillSignsOut(t *testing.T) {
	provider := identitytest.NewProvider()
	provider.AddAccount("jane@example.com", "SecurePass123")
	session := NewSession(provider)
	defer session.Close()

	ctx := context.Background()
	_, err := session.Login(ctx, "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	provider.FailNext(errors.New("network down"))
	err = session.Logout(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to log out: network down")
	assert.Nil(t, session.Current())
}

func TestSession_CancelAndClose(t *testing.T) {
	provider := identitytest.NewProvider()
	provider.AddAccount("jane@example.com", "SecurePass123")
	session := NewSession(provider)
	require.Equal(t, 1, provider.Listeners())

	called := false
	cancel := session.OnChange(func(*models.Identity) { called = true })
	cancel()

	_, err := session.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)
	assert.False(t, called)

	session.Close()
	assert.Equal(t, 0, provider.Listeners())
}

func TestSession_CurrentReturnsCopy(t *testing.T) {
	provider := identitytest.NewProvider()
	provider.AddAccount("jane@example.com", "SecurePass123")
	session := NewSession(provider)
	defer session.Close()

	_, err := session.Login(context.Background(), "jane@example.com", "SecurePass123")
	require.NoError(t, err)

	current := session.Current()
	current.Email = "mutated@example.com"
	assert.Equal(t, "jane@example.com", session.Current().Email)
}

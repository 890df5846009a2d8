// Package remote binds the task core to the tasktracker gRPC backend: an
// identity.Provider over AuthService and a docstore.Store over DocumentService.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/identity"
	"github.com/gurkanbulca/tasktracker/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakSecret         = errors.New("password or email rejected")
	ErrAccountLocked      = errors.New("account locked")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoSession          = errors.New("no session to resume")
)

// refreshSkew is how long before expiry an access token is renewed.
const refreshSkew = 30 * time.Second

// Tokens are the credentials of a signed-in session.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthClient implements identity.Provider against the AuthService and keeps
// the session's tokens for the other clients on the same connection.
type AuthClient struct {
	client tasktrackerv1.AuthServiceClient
	now    func() time.Time

	// refreshMu serialises token refreshes.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	identity  *models.Identity
	tokens    Tokens
	listeners map[int]func(*models.Identity)
	nextID    int
}

var (
	_ identity.Provider        = (*AuthClient)(nil)
	_ identity.ProfileProvider = (*AuthClient)(nil)
)

// NewAuthClient creates a signed-out client over cc.
func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{
		client:    tasktrackerv1.NewAuthServiceClient(cc),
		now:       time.Now,
		listeners: make(map[int]func(*models.Identity)),
	}
}

// SignInWithPassword signs in and stores the issued tokens.
func (c *AuthClient) SignInWithPassword(ctx context.Context, email, secret string) (*models.Identity, error) {
	req, err := tasktrackerv1.Credentials{Email: email, Password: secret}.Proto()
	if err != nil {
		return nil, err
	}
	resp, err := c.client.SignIn(ctx, req)
	if err != nil {
		return nil, authError(err)
	}
	return c.startSession(resp)
}

// SignUpWithPassword creates an account without a display name.
func (c *AuthClient) SignUpWithPassword(ctx context.Context, email, secret string) (*models.Identity, error) {
	return c.SignUp(ctx, email, secret, "")
}

// SignUp creates an account with a display name.
func (c *AuthClient) SignUp(ctx context.Context, email, secret, displayName string) (*models.Identity, error) {
	req, err := tasktrackerv1.Credentials{Email: email, Password: secret, DisplayName: displayName}.Proto()
	if err != nil {
		return nil, err
	}
	resp, err := c.client.SignUp(ctx, req)
	if err != nil {
		return nil, authError(err)
	}
	return c.startSession(resp)
}

// SignOut ends the session on the server. The local session is cleared even
// when the server cannot be reached.
func (c *AuthClient) SignOut(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.tokens.RefreshToken
	signedIn := c.identity != nil
	c.mu.RUnlock()

	var err error
	if signedIn {
		req, encErr := tasktrackerv1.TokenRequest{RefreshToken: refresh}.Proto()
		if encErr != nil {
			err = encErr
		} else if _, callErr := c.client.SignOut(ctx, req, grpc.PerRPCCredentials(c.Credentials())); callErr != nil {
			err = authError(callErr)
		}
	}

	c.setSession(nil, Tokens{})
	return err
}

// OnIdentityChanged registers fn for every sign-in and sign-out.
func (c *AuthClient) OnIdentityChanged(fn func(*models.Identity)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Resume restores a persisted session from its refresh token.
func (c *AuthClient) Resume(ctx context.Context, refreshToken string) (*models.Identity, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	req, err := tasktrackerv1.TokenRequest{RefreshToken: refreshToken}.Proto()
	if err != nil {
		return nil, err
	}
	resp, err := c.client.RefreshToken(ctx, req)
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return nil, ErrSessionExpired
		}
		return nil, authError(err)
	}
	return c.startSession(resp)
}

// EnsureFresh renews the access token when it is about to expire.
func (c *AuthClient) EnsureFresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	tokens := c.tokens
	signedIn := c.identity != nil
	c.mu.RUnlock()

	if !signedIn || c.now().Add(refreshSkew).Before(tokens.ExpiresAt) {
		return nil
	}
	_, err := c.Resume(ctx, tokens.RefreshToken)
	if errors.Is(err, ErrSessionExpired) {
		c.setSession(nil, Tokens{})
	}
	return err
}

// Tokens returns the current session tokens.
func (c *AuthClient) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// Identity returns the signed-in user or nil.
func (c *AuthClient) Identity() *models.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Credentials attaches the session's access token to every call.
func (c *AuthClient) Credentials() credentials.PerRPCCredentials {
	return tokenCredentials{client: c}
}

func (c *AuthClient) startSession(resp *structpb.Struct) (*models.Identity, error) {
	sess, err := tasktrackerv1.SessionFromProto(resp)
	if err != nil {
		return nil, err
	}
	id := &models.Identity{ID: sess.UserID, Email: sess.Email, DisplayName: sess.DisplayName}
	c.setSession(id, Tokens{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(sess.ExpiresIn) * time.Second),
	})
	out := *id
	return &out, nil
}

// setSession stores the session and tells listeners when the user changed.
func (c *AuthClient) setSession(id *models.Identity, tokens Tokens) {
	c.mu.Lock()
	changed := !models.SameIdentity(c.identity, id)
	c.identity = id
	c.tokens = tokens
	fns := make([]func(*models.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}

type tokenCredentials struct {
	client *AuthClient
}

func (t tokenCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token := t.client.Tokens().AccessToken
	if token == "" {
		return map[string]string{}, nil
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity is false so the client also works against a
// plaintext development server.
func (t tokenCredentials) RequireTransportSecurity() bool {
	return false
}

// authError maps AuthService status codes to the provider's errors.
func authError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrInvalidCredentials
	case codes.AlreadyExists:
		return ErrEmailInUse
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrWeakSecret, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrAccountLocked, st.Message())
	default:
		return tasktrackerv1.StoreError(err)
	}
}

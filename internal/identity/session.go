// Package identity tracks the signed-in user and propagates sign-in and
// sign-out transitions to the components that depend on them.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/gurkanbulca/tasktracker/internal/models"
)

// Provider is the authentication collaborator.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, secret string) (*models.Identity, error)
	SignUpWithPassword(ctx context.Context, email, secret string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChanged registers fn for every identity change reported by
	// the provider; nil means signed out.
	OnIdentityChanged(fn func(*models.Identity)) (unsubscribe func())
}

// ProfileProvider is implemented by providers that accept a display name
// when an account is created.
type ProfileProvider interface {
	SignUp(ctx context.Context, email, secret, displayName string) (*models.Identity, error)
}

// ChangeFunc observes identity transitions.
type ChangeFunc func(*models.Identity)

// Session exposes the current identity and the login, signup and logout
// entry points. Transitions are delivered synchronously to every listener
// before the call that caused them returns.
type Session struct {
	provider Provider

	// notifyMu serialises transitions so listeners observe them in order.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	current   *models.Identity
	listeners []listener
	nextID    int

	stopProvider func()
}

type listener struct {
	id int
	fn ChangeFunc
}

// NewSession wraps provider and starts observing its identity changes.
func NewSession(provider Provider) *Session {
	s := &Session{provider: provider}
	s.stopProvider = provider.OnIdentityChanged(s.apply)
	return s
}

// Current returns the signed-in identity or nil.
func (s *Session) Current() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// OnChange registers fn for identity transitions. fn must not call Login,
// Signup or Logout.
func (s *Session) OnChange(fn ChangeFunc) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Login signs in with email and password.
func (s *Session) Login(ctx context.Context, email, secret string) (*models.Identity, error) {
	id, err := s.provider.SignInWithPassword(ctx, email, secret)
	if err != nil {
		return nil, &AuthError{Op: OpLogin, Err: err}
	}
	if id == nil {
		return nil, &AuthError{Op: OpLogin, Err: errors.New("provider returned no identity")}
	}
	s.apply(id)
	return s.Current(), nil
}

// Signup registers a new account and signs it in.
func (s *Session) Signup(ctx context.Context, email, secret string) (*models.Identity, error) {
	return s.signup(func() (*models.Identity, error) {
		return s.provider.SignUpWithPassword(ctx, email, secret)
	})
}

// SignupWithName is Signup with a display name. Providers that do not
// implement ProfileProvider sign up without one.
func (s *Session) SignupWithName(ctx context.Context, email, secret, displayName string) (*models.Identity, error) {
	pp, ok := s.provider.(ProfileProvider)
	if !ok || displayName == "" {
		return s.Signup(ctx, email, secret)
	}
	return s.signup(func() (*models.Identity, error) {
		return pp.SignUp(ctx, email, secret, displayName)
	})
}

func (s *Session) signup(create func() (*models.Identity, error)) (*models.Identity, error) {
	id, err := create()
	if err != nil {
		return nil, &AuthError{Op: OpSignup, Err: err}
	}
	if id == nil {
		return nil, &AuthError{Op: OpSignup, Err: errors.New("provider returned no identity")}
	}
	s.apply(id)
	return s.Current(), nil
}

// Logout ends the session. The local identity is cleared even when the
// provider reports an error.
func (s *Session) Logout(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.apply(nil)
	if err != nil {
		return &AuthError{Op: OpLogout, Err: err}
	}
	return nil
}

// Close stops observing the provider. Listeners are kept but receive nothing further.
func (s *Session) Close() {
	if s.stopProvider != nil {
		s.stopProvider()
	}
}

// apply records id and notifies listeners when it differs from the current identity.
func (s *Session) apply(id *models.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if models.SameIdentity(s.current, id) {
		if id != nil {
			// Same user; refresh profile fields without a transition.
			cp := *id
			s.current = &cp
		}
		s.mu.Unlock()
		return
	}
	if id == nil {
		s.current = nil
	} else {
		cp := *id
		s.current = &cp
	}
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		if id == nil {
			l.fn(nil)
			continue
		}
		cp := *id
		l.fn(&cp)
	}
}

// Package identitytest provides an in-process identity provider for tests.
package identitytest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gurkanbulca/tasktracker/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
)

type account struct {
	identity models.Identity
	secret   string
}

// Provider keeps accounts in memory and reports identity changes
// synchronously, like a hosted auth SDK would on its callback thread.
type Provider struct {
	mu        sync.Mutex
	accounts  map[string]account
	current   *models.Identity
	listeners map[int]func(*models.Identity)
	nextID    int
	failNext  error
}

// NewProvider creates a provider with no accounts.
func NewProvider() *Provider {
	return &Provider{
		accounts:  make(map[string]account),
		listeners: make(map[int]func(*models.Identity)),
	}
}

// AddAccount registers an account without signing it in.
func (p *Provider) AddAccount(email, secret string) models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := models.Identity{ID: uuid.NewString(), Email: strings.ToLower(email)}
	p.accounts[id.Email] = account{identity: id, secret: secret}
	return id
}

// FailNext makes the next provider call return err.
func (p *Provider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Listeners returns the number of registered change listeners.
func (p *Provider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// SignInWithPassword signs in a registered account.
func (p *Provider) SignInWithPassword(_ context.Context, email, secret string) (*models.Identity, error) {
	p.mu.Lock()
	if err := p.takeFailure(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	acc, ok := p.accounts[strings.ToLower(email)]
	if !ok || acc.secret != secret {
		p.mu.Unlock()
		return nil, ErrInvalidCredentials
	}
	id := acc.identity
	p.mu.Unlock()

	p.set(&id)
	return &id, nil
}

// SignUpWithPassword creates and signs in an account.
func (p *Provider) SignUpWithPassword(ctx context.Context, email, secret string) (*models.Identity, error) {
	return p.SignUp(ctx, email, secret, "")
}

// SignUp creates and signs in an account with an optional display name.
func (p *Provider) SignUp(_ context.Context, email, secret, displayName string) (*models.Identity, error) {
	p.mu.Lock()
	if err := p.takeFailure(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	key := strings.ToLower(email)
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return nil, ErrEmailInUse
	}
	id := models.Identity{ID: uuid.NewString(), Email: key, DisplayName: displayName}
	p.accounts[key] = account{identity: id, secret: secret}
	p.mu.Unlock()

	p.set(&id)
	return &id, nil
}

// SignOut clears the current identity.
func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	err := p.takeFailure()
	p.mu.Unlock()

	p.set(nil)
	return err
}

// OnIdentityChanged registers fn for identity changes.
func (p *Provider) OnIdentityChanged(fn func(*models.Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *Provider) set(id *models.Identity) {
	p.mu.Lock()
	p.current = id
	fns := make([]func(*models.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

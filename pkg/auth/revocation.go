package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers token ids (jti) that must no longer be accepted.
type Revoker interface {
	// Revoke blocks jti until expiresAt, after which the token is
	// rejected on its own.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevoker stores revoked ids as keys that expire with the token.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

// NewRedisRevoker creates a revoker on client.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "revoked:"}
}

// Revoke blacklists jti until expiresAt
func (r *RedisRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks whether jti is blacklisted
func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevoker keeps revoked ids in process memory. Entries are dropped
// lazily once their token would have expired anyway.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevoker creates an in-process revoker
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke blacklists jti until expiresAt
func (m *MemoryRevoker) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !expiresAt.After(m.now()) {
		return nil
	}
	m.revoked[jti] = expiresAt
	m.sweep()
	return nil
}

// IsRevoked checks whether jti is blacklisted
func (m *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	if !until.After(m.now()) {
		delete(m.revoked, jti)
		return false, nil
	}
	return true, nil
}

// Len returns the number of remembered ids.
func (m *MemoryRevoker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.revoked)
}

func (m *MemoryRevoker) sweep() {
	now := m.now()
	for jti, until := range m.revoked {
		if !until.After(now) {
			delete(m.revoked, jti)
		}
	}
}

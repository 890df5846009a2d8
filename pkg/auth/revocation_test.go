package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "live", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "already-expired", now.Add(-time.Minute)))

	revoked, err := r.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "already-expired")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 1, r.Len())

	// Once the token would have expired the entry is forgotten.
	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Equal(t, 0, r.Len())
}

func TestRedisRevoker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	r := NewRedisRevoker(client)
	jti := uuid.NewString()

	revoked, err := r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	revoked, err = r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, "revoked:"+jti).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}

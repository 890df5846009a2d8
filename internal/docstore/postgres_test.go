package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/tasktracker/internal/database"
)

// setupPostgresStore connects to TEST_DATABASE_URL; the test is skipped when
// no database is available.
func setupPostgresStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, database.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `DELETE FROM documents WHERE collection = 'docstore_test'`)
	require.NoError(t, err)

	store := NewPostgresStore(db, dsn, nil)
	go func() {
		_ = store.Run(ctx)
	}()
	return store, ctx
}

func TestPostgresStore_CRUD(t *testing.T) {
	store, ctx := setupPostgresStore(t)

	id, err := store.Insert(ctx, "docstore_test", Fields{"userId": "u1", "title": "first", "completed": false})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "docstore_test", Fields{"userId": "u2", "title": "other"})
	require.NoError(t, err)

	docs, err := store.QueryScoped(ctx, Query{Collection: "docstore_test", Field: "userId", Value: "u1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	assert.Equal(t, "first", docs[0].Fields["title"])

	require.NoError(t, store.Mutate(ctx, "docstore_test", id, Fields{"completed": true, "completedAt": nil}))
	doc, err := store.Get(ctx, "docstore_test", id)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Fields["completed"])
	assert.Equal(t, "u1", doc.Fields["userId"])

	require.NoError(t, store.Remove(ctx, "docstore_test", id))
	require.NoError(t, store.Remove(ctx, "docstore_test", id))
	_, err = store.Get(ctx, "docstore_test", id)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Mutate(ctx, "docstore_test", id, Fields{"completed": false})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_SubscribeFollowsNotifications(t *testing.T) {
	store, ctx := setupPostgresStore(t)

	snaps := make(chan Snapshot, 16)
	unsubscribe, err := store.Subscribe(ctx, Query{Collection: "docstore_test", Field: "userId", Value: "u1"}, func(s Snapshot) {
		snaps <- s
	})
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case s := <-snaps:
		require.NoError(t, s.Err)
		assert.Empty(t, s.Documents)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	// Give the listener a moment to start before writing.
	time.Sleep(200 * time.Millisecond)
	_, err = store.Insert(ctx, "docstore_test", Fields{"userId": "u1", "title": "live"})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-snaps:
			if s.Err == nil && len(s.Documents) == 1 {
				assert.Equal(t, "live", s.Documents[0].Fields["title"])
				return
			}
		case <-deadline:
			t.Fatal("insert was not delivered to the subscription")
		}
	}
}

package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"kochchi/internal/database"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.NewDB(":memory:", database.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db.DB)
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	future := time.Now().Add(time.Hour)

	_, err := store.Get(ctx, "missing", KeyAdminToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "s1", map[string]string{KeyAdminToken: "a", KeyRole: "r"}, future))
	v, err := store.Get(ctx, "s1", KeyAdminToken)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = store.Get(ctx, "s1", KeyEmail)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "s1", map[string]string{KeyAdminToken: "b"}, future))
	v, err = store.Get(ctx, "s1", KeyAdminToken)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	v, err = store.Get(ctx, "s1", KeyRole)
	require.NoError(t, err)
	assert.Equal(t, "r", v, "untouched keys survive a partial put")

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1", KeyAdminToken)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	storeContract(t, newSQLStore(t))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("KOCHCHI_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KOCHCHI_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	store := NewRedisStore(rdb)
	require.NoError(t, store.Ping(context.Background()))
	storeContract(t, store)
}

func TestSQLStoreExpiry(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "old", map[string]string{KeyAdminToken: "x"}, now.Add(-time.Minute)))
	require.NoError(t, store.Put(ctx, "live", map[string]string{KeyAdminToken: "y"}, now.Add(time.Minute)))

	_, err := store.Get(ctx, "old", KeyAdminToken)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var values int
	require.NoError(t, store.db.QueryRow("SELECT count(*) FROM session_values WHERE session_id = 'old'").Scan(&values))
	assert.Zero(t, values)

	v, err := store.Get(ctx, "live", KeyAdminToken)
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "old", map[string]string{KeyAdminToken: "x"}, time.Now().Add(-time.Second)))

	_, err := store.Get(ctx, "old", KeyAdminToken)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := store.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunCleanupStopsWithContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.Put(ctx, "old", map[string]string{KeyAdminToken: "x"}, time.Now().Add(-time.Second)))

	done := make(chan struct{})
	go func() {
		RunCleanup(ctx, store, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.sessions) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

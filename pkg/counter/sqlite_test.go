package counter

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "counter.db")
	store, err := OpenSQLite(path, "visits")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	return store, path
}

func TestSQLiteStore_InitializeIdempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Initialize(ctx))
	v, err := store.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestSQLiteStore_IncrementThenRead(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	before, err := store.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before)

	after, err := store.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	read, err := store.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, read)
}

func TestSQLiteStore_Persists(t *testing.T) {
	store, path := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Increment(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path, "visits")
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Initialize(ctx))

	v, err := reopened.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestSQLiteStore_ConcurrentIncrements(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Increment(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	v, err := store.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), v)
}

func TestSQLiteStore_NamedCountersAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.db")
	ctx := context.Background()

	a, err := OpenSQLite(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Initialize(ctx))
	require.NoError(t, b.Initialize(ctx))

	_, err = a.Increment(ctx)
	require.NoError(t, err)

	vb, err := b.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), vb)
}

func TestSQLiteStore_NotInitialized(t *testing.T) {
	store, err := OpenSQLite(":memory:", "visits")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Value(ctx)
	assert.Error(t, err)

	// table exists but the row does not
	_, err = store.db.ExecContext(ctx, schema)
	require.NoError(t, err)

	_, err = store.Increment(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = store.Value(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("", "visits")
	assert.Error(t, err)
}

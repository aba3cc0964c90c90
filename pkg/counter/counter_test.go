package counter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type flag struct{ counted bool }

func (f *flag) MarkCounted() bool {
	if f.counted {
		return false
	}
	f.counted = true
	return true
}

func (f *flag) ResetCounted() { f.counted = false }

func TestOpen(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := Open("memory", "", "")
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open("sqlite", t.TempDir()+"/c.db", "")
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStore{}, s)
		assert.Equal(t, DefaultName, s.(*SQLiteStore).name)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open("redis", "", "")
		assert.Error(t, err)
	})
}

func TestCountOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Initialize(ctx))

	gate := &flag{}

	n, incremented, err := CountOnce(ctx, store, gate)
	require.NoError(t, err)
	assert.True(t, incremented)
	assert.Equal(t, int64(1), n)

	n, incremented, err = CountOnce(ctx, store, gate)
	require.NoError(t, err)
	assert.False(t, incremented)
	assert.Equal(t, int64(1), n)

	other := &flag{}
	n, incremented, err = CountOnce(ctx, store, other)
	require.NoError(t, err)
	assert.True(t, incremented)
	assert.Equal(t, int64(2), n)
}

func TestCountOnceStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Err = errors.New("disk full")

	gate := &flag{}
	_, incremented, err := CountOnce(ctx, store, gate)
	assert.Error(t, err)
	assert.False(t, incremented)
	assert.False(t, gate.counted)

	store.Err = nil
	require.NoError(t, store.Initialize(ctx))
	n, incremented, err := CountOnce(ctx, store, gate)
	require.NoError(t, err)
	assert.True(t, incremented)
	assert.Equal(t, int64(1), n)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		n    int64
		tag  language.Tag
		want string
	}{
		{0, language.English, "0"},
		{999, language.English, "999"},
		{1234, language.English, "1,234"},
		{1234567, language.English, "1,234,567"},
		{1234567, language.German, "1.234.567"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.n, tt.tag))
		})
	}
}

func TestReadFormatted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Initialize(ctx))
	for i := 0; i < 1500; i++ {
		_, err := store.Increment(ctx)
		require.NoError(t, err)
	}

	n, err := Read(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)

	s, err := ReadFormatted(ctx, store, language.English)
	require.NoError(t, err)
	assert.Equal(t, "1,500", s)
}

func TestMemoryStoreNotInitialized(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Increment(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

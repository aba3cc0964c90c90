package scratch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates nested directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "a", "temp_uploads")
		d, err := New(root)
		require.NoError(t, err)

		info, err := os.Stat(d.Root())
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty root", func(t *testing.T) {
		_, err := New("")
		assert.Error(t, err)
	})
}

func TestNewImagePath(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	a := d.NewImagePath()
	b := d.NewImagePath()

	assert.NotEqual(t, a, b)
	assert.True(t, d.Contains(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), "generated_image_"))
	assert.Equal(t, ".jpg", filepath.Ext(a))
}

func TestContains(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	assert.True(t, d.Contains(filepath.Join(d.Root(), "x.jpg")))
	assert.False(t, d.Contains(filepath.Join(d.Root(), "sub", "x.jpg")))
	assert.False(t, d.Contains(filepath.Join(d.Root(), "..", "x.jpg")))
	assert.False(t, d.Contains(""))
}

func TestRemove(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	path := d.NewImagePath()
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))

	require.NoError(t, d.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, d.Remove(path))

	outside := filepath.Join(t.TempDir(), "generated_image_x.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("jpeg"), 0o644))
	assert.ErrorIs(t, d.Remove(outside), ErrOutsideDir)
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	gen := d.NewImagePath()
	require.NoError(t, os.WriteFile(gen, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "notes.txt"), nil, 0o644))

	files, err := d.List()
	require.NoError(t, err)
	assert.Equal(t, []string{gen}, files)
}

func TestSweep(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	old := d.NewImagePath()
	fresh := d.NewImagePath()
	foreign := filepath.Join(d.Root(), "keep.jpg")
	for _, p := range []string{old, fresh, foreign} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(foreign, past, past))

	removed, err := d.Sweep(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(foreign)
	assert.NoError(t, err)
}

func TestSweepCancelled(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(d.NewImagePath(), nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Sweep(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "subdir", "tinies.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestRotatingWriterRotation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "tinies.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)
	defer rw.Close()
	rw.maxSize = 64

	line := []byte(strings.Repeat("a", 40) + "\n")
	for i := 0; i < 3; i++ {
		n, err := rw.Write(line)
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}

	rotated, err := filepath.Glob(filepath.Join(dir, "tinies.log.*"))
	require.NoError(t, err)
	assert.Len(t, rotated, 2)

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, line, current)
}

func TestRotatingWriterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "tinies.log"), 10, 7, false)
	require.NoError(t, err)

	require.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "tinies.log.1")
	require.NoError(t, os.WriteFile(testFile, []byte("rotated content"), 0o644))

	require.NoError(t, compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "tinies.log")

	oldFile := logFile + ".20200101-120000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	freshFile := logFile + ".20990101-120000"
	require.NoError(t, os.WriteFile(freshFile, []byte("fresh log"), 0o644))

	rw := &RotatingWriter{filename: logFile, maxAge: 7}
	rw.cleanup()

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshFile)
	assert.NoError(t, err)
}

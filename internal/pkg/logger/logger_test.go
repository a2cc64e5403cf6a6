package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stdout_2026-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old\n"), 0o644))
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("keep\n"), 0o644))

	w, err := NewWriter(dir, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	day = day.Add(24 * time.Hour)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "stdout_2026-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "stdout_2026-03-11.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, other)
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Dir: dir, KeepDays: 1})
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	content, err := os.ReadFile(filepath.Join(dir, Filename(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"hello"`)
}

package notify

import (
	"os"
	"path/filepath"
	"rsd/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchive(t *testing.T, dir string, ttl time.Duration) *Archive {
	t.Helper()
	return NewArchive(dir, ttl, &testutil.MockCompressor{}, &testutil.MockLogger{})
}

func TestArchive_EvictRestoreBeforeFlush(t *testing.T) {
	ar := newArchive(t, t.TempDir(), 0)
	ar.Evict(record("n1", "u1", true))

	assert.True(t, ar.Has("u1", "n1"))

	rec, err := ar.Restore("u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", rec.ID)
	assert.False(t, ar.Has("u1", "n1"))
}

func TestArchive_FlushWritesAndSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ar := newArchive(t, dir, 0)
	ar.Evict(record("n1", "u1", true))
	ar.Evict(record("n2", "u1", true))
	require.NoError(t, ar.Flush())

	_, err := os.Stat(filepath.Join(dir, "u1.zst"))
	require.NoError(t, err)

	ar2 := newArchive(t, dir, 0)
	require.NoError(t, ar2.RestoreIndex())
	assert.True(t, ar2.Has("u1", "n1"))
	assert.True(t, ar2.Has("u1", "n2"))

	rec, err := ar2.Restore("u1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "title n1", rec.Title)
}

func TestArchive_DropRemovesOnNextFlush(t *testing.T) {
	dir := t.TempDir()
	ar := newArchive(t, dir, 0)
	ar.Evict(record("n1", "u1", true))
	require.NoError(t, ar.Flush())

	require.NoError(t, ar.Drop("u1", "n1"))
	assert.False(t, ar.Has("u1", "n1"))
	require.NoError(t, ar.Flush())

	// the last entry is gone, so the file goes with it
	_, err := os.Stat(filepath.Join(dir, "u1.zst"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchive_DropUnknown(t *testing.T) {
	ar := newArchive(t, t.TempDir(), 0)
	assert.Error(t, ar.Drop("u1", "ghost"))
}

func TestArchive_FlushDropsExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	ar := newArchive(t, dir, time.Hour)

	ar.Evict(record("n1", "u1", true))
	ar.mu.Lock()
	ar.pending["u1"]["n1"].ArchivedAt = time.Now().Add(-2 * time.Hour)
	ar.mu.Unlock()

	require.NoError(t, ar.Flush())
	assert.False(t, ar.Has("u1", "n1"))
	_, err := os.Stat(filepath.Join(dir, "u1.zst"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchive_FlushStaysInsideDir(t *testing.T) {
	outer := t.TempDir()
	dir := filepath.Join(outer, "a", "b")
	ar := newArchive(t, dir, 0)

	ar.Evict(record("n1", "../../escaped", true))
	require.NoError(t, ar.Flush())

	_, err := os.Stat(filepath.Join(outer, "escaped.zst"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "escaped.zst"))
	assert.NoError(t, err)
}

func TestArchive_RestoreIndexMissingDir(t *testing.T) {
	ar := newArchive(t, filepath.Join(t.TempDir(), "nope"), 0)
	require.NoError(t, ar.RestoreIndex())
}

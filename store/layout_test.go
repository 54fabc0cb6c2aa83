package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahurka/Arrhenius/config"
)

var testScale = config.Scale{Min: -5, Max: 5}

func newLayout(t *testing.T) *Layout {
	t.Helper()

	l, err := New(filepath.Join(t.TempDir(), "output"))
	require.NoError(t, err)
	return l
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestLayoutPaths(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	const runID = "abc123"

	assert.Equal(t, filepath.Join(l.Root(), "abc123"), l.RunDir(runID))
	assert.Equal(t,
		filepath.Join(l.Root(), "abc123", "abc123.arr"),
		l.DatasetPath(runID))
	assert.Equal(t,
		filepath.Join(l.Root(), "abc123", "abc123_[-5x5]", "abc123_temperature_[-5x5].zip"),
		l.ArchivePath(runID, "temperature", testScale))

	dir, err := l.ImageDir(runID, "temperature", testScale, false)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(l.Root(), "abc123", "abc123_[-5x5]", "temperature"),
		dir)
}

func TestImageFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"temperature_2_abc123_[-5x5].png",
		ImageFileName("abc123", "temperature", 2, testScale))
}

func TestRunIDFromDatasetPath(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	path := l.DatasetPath("deadbeef")
	assert.Equal(t, "deadbeef", RunIDFromDatasetPath(path))
}

func TestImageDirCreateIdempotent(t *testing.T) {
	t.Parallel()

	l := newLayout(t)

	dir, err := l.ImageDir("run1", "temperature", testScale, true)
	require.NoError(t, err)
	require.DirExists(t, dir)

	// Creating again must not fail.
	again, err := l.ImageDir("run1", "temperature", testScale, true)
	require.NoError(t, err)
	assert.Equal(t, dir, again)

	// Without create, no directory is made.
	other, err := l.ImageDir("run2", "temperature", testScale, false)
	require.NoError(t, err)
	assert.NoDirExists(t, other)
}

func TestExists(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	path := l.DatasetPath("run1")
	assert.False(t, l.Exists(path))

	require.NoError(t, l.WriteFileAtomic(path, []byte("data")))
	assert.True(t, l.Exists(path))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	path := l.DatasetPath("run1")

	require.NoError(t, l.WriteFileAtomic(path, []byte("payload")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	// No staging temporaries may remain.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStagedFileCommit(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	path := l.DatasetPath("run1")

	staged, err := l.StageFile(path)
	require.NoError(t, err)

	_, err = staged.Write([]byte("partial"))
	require.NoError(t, err)

	// Invisible until committed: a crash mid-write cannot produce a
	// false cache hit.
	assert.False(t, l.Exists(path))

	require.NoError(t, staged.Commit())
	assert.True(t, l.Exists(path))
}

func TestStagedFileDiscard(t *testing.T) {
	t.Parallel()

	l := newLayout(t)
	path := l.DatasetPath("run1")

	staged, err := l.StageFile(path)
	require.NoError(t, err)
	_, err = staged.Write([]byte("doomed"))
	require.NoError(t, err)
	require.NoError(t, staged.Discard())

	assert.False(t, l.Exists(path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

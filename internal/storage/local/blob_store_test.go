package local

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/wikichron/internal/storage"
)

func newStore(t *testing.T) *BlobStore {
	t.Helper()
	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{BaseDir: "  "})
	require.Error(t, err)
}

func TestNewCreatesMissingBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	uri, err := s.Put(ctx, "clean_text/Sonichu.txt", "text/plain", strings.NewReader("body"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := s.Get(ctx, "clean_text/Sonichu.txt")
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))
}

func TestGetMissingReturnsErrNotExist(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "missing.json")
	require.ErrorIs(t, err, storage.ErrNotExist)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ok, err := s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Put(ctx, "a.txt", "", strings.NewReader("x"))
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Size(ctx, "a.txt")
	require.ErrorIs(t, err, storage.ErrNotExist)

	_, err = s.Put(ctx, "a.txt", "", strings.NewReader("hello"))
	require.NoError(t, err)

	size, err := s.Size(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestListReturnsRelativeSlashPaths(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, p := range []string{"clean_text/A.txt", "clean_text/B.txt", "raw_json/A.json"} {
		_, err := s.Put(ctx, p, "", strings.NewReader("x"))
		require.NoError(t, err)
	}

	got, err := s.List(ctx, "clean_text")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"clean_text/A.txt", "clean_text/B.txt"}, got)
}

func TestListMissingPrefixIsEmpty(t *testing.T) {
	s := newStore(t)
	got, err := s.List(context.Background(), "never")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPutRejectsPathTraversal(t *testing.T) {
	s := newStore(t)
	_, err := s.Put(context.Background(), "../escape.txt", "", strings.NewReader("x"))
	require.Error(t, err)
}

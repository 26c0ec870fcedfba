package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestBeginSessionCopiesBasePathContent(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "a.txt", "hello")
	writeFile(t, base, "nested/b.txt", "world")

	mgr, err := NewNativeManager(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := mgr.BeginSession(ctx, base)
	require.NoError(t, err)

	path, ok := mgr.SessionPath(ctx, id)
	require.True(t, ok)

	content, err := os.ReadFile(filepath.Join(path, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	content, err = os.ReadFile(filepath.Join(path, "nested/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(content))

	assert.Equal(t, 1, mgr.ActiveSessionCount(ctx))
}

func TestBeginSessionRejectsMissingBasePath(t *testing.T) {
	mgr, err := NewNativeManager(t.TempDir())
	require.NoError(t, err)

	_, err = mgr.BeginSession(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestCommitSessionMirrorsChangesAndDeletionsOntoBase(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "keep.txt", "keep")
	writeFile(t, base, "remove.txt", "gone soon")

	mgr, err := NewNativeManager(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := mgr.BeginSession(ctx, base)
	require.NoError(t, err)

	path, _ := mgr.SessionPath(ctx, id)
	require.NoError(t, os.Remove(filepath.Join(path, "remove.txt")))
	writeFile(t, path, "added.txt", "brand new")

	require.NoError(t, mgr.CommitSession(ctx, id))

	_, err = os.Stat(filepath.Join(base, "remove.txt"))
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(base, "added.txt"))
	require.NoError(t, err)
	assert.Equal(t, "brand new", string(content))

	content, err = os.ReadFile(filepath.Join(base, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))

	_, ok := mgr.SessionPath(ctx, id)
	assert.False(t, ok)
	assert.Equal(t, 0, mgr.ActiveSessionCount(ctx))
}

func TestRollbackSessionDiscardsChangesWithoutTouchingBase(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "a.txt", "original")

	mgr, err := NewNativeManager(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := mgr.BeginSession(ctx, base)
	require.NoError(t, err)

	path, _ := mgr.SessionPath(ctx, id)
	writeFile(t, path, "a.txt", "modified")

	require.NoError(t, mgr.RollbackSession(ctx, id))

	content, err := os.ReadFile(filepath.Join(base, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))

	_, ok := mgr.SessionPath(ctx, id)
	assert.False(t, ok)
}

func TestCommitSessionUnknownIDFails(t *testing.T) {
	mgr, err := NewNativeManager(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, mgr.CommitSession(context.Background(), "does-not-exist"))
}

func TestManagerInterfaceIsSatisfied(t *testing.T) {
	var _ Manager = (*NativeManager)(nil)
}

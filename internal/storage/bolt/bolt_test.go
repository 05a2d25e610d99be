package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chatsync/internal/errs"
	"chatsync/internal/storage"
)

func open(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := open(t, t.TempDir())

	_, err := s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Put(ctx, storage.KeyToken, []byte("tok")))
	got, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.Equal(t, []byte("tok"), got)

	require.NoError(t, s.Delete(ctx, storage.KeyToken))
	_, err = s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// deleting an absent key is a no-op
	require.NoError(t, s.Delete(ctx, storage.KeyToken))
}

func TestSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	require.NoError(t, storage.PutJSON(ctx, s, storage.KeyWorkspace, map[string]any{"id": 1, "name": "acme"}))
	require.NoError(t, s.Close())

	s2 := open(t, dir)
	ws, err := storage.GetJSON[map[string]any](ctx, s2, storage.KeyWorkspace)
	require.NoError(t, err)
	require.Equal(t, "acme", ws["name"])
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	s := open(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Put(ctx, "k", []byte("v"))
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "secrets")
	store := NewFileStore(dir, "official_api_key")

	_, err := store.FetchSecret(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "  sk-official\n"))
	got, err := store.FetchSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-official", got)

	info, err := os.Stat(filepath.Join(dir, "official_api_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Clear(ctx))
	_, err = store.FetchSecret(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Clear(ctx), "clearing twice is fine")
}

func TestFileStore_RejectsEmptySecret(t *testing.T) {
	store := NewFileStore(t.TempDir(), "key")
	assert.Error(t, store.Save(context.Background(), "   "))
}

func TestReadSecret_EmptyFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("\n"), 0o600))

	_, err := ReadSecret(dir, "db_password")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")

	_, err := store.FetchSecret(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "k"))
	got, err := store.FetchSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k", got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.FetchSecret(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

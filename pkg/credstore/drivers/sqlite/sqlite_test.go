package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/credstore/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func openBackend(t *testing.T, dsn string) *sqlite.Backend {
	t.Helper()

	b, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := openBackend(t, ":memory:")
	require.NoError(t, b.Ping(ctx))

	_, err := b.Load(ctx, "accessToken")
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, b.Save(ctx, "accessToken", "first"))
	require.NoError(t, b.Save(ctx, "accessToken", "second"))

	v, err := b.Load(ctx, "accessToken")
	require.NoError(t, err)
	require.Equal(t, "second", v)

	require.NoError(t, b.Delete(ctx, "accessToken"))
	_, err = b.Load(ctx, "accessToken")
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestSQLiteBackendSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "credentials.db")

	first, err := sqlite.Open(dsn)
	require.NoError(t, err)
	store, err := credstore.Open(ctx, first, "", nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "kept"))
	require.NoError(t, store.Close())

	// migrations run again on reopen and must be a no-op
	second := openBackend(t, dsn)
	restored, err := credstore.Open(ctx, second, "", nil)
	require.NoError(t, err)

	got, ok := restored.Get()
	require.True(t, ok)
	require.Equal(t, "kept", got.Token())
}

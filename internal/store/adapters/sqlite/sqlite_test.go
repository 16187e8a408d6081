package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/store"
	_ "github.com/dropDatabas3/authority/internal/store/adapters/sqlite"
	"github.com/dropDatabas3/authority/internal/store/storetest"
)

func TestSQLiteAdapter(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.AdapterConnection {
		conn, err := store.OpenAdapter(context.Background(), store.AdapterConfig{
			Name:        "sqlite",
			DSN:         filepath.Join(t.TempDir(), "authority.db"),
			AutoMigrate: true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	})
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name: "sqlite", DSN: filepath.Join(t.TempDir(), "m.db"), AutoMigrate: true,
	})
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.(store.MigratableConnection).Migrate(ctx)
	require.NoError(t, err)
	require.Empty(t, res.Applied)
	require.Equal(t, []int{1}, res.Skipped)
}

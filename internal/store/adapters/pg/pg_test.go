package pg_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/store"
	_ "github.com/dropDatabas3/authority/internal/store/adapters/pg"
	"github.com/dropDatabas3/authority/internal/store/storetest"
)

// Requiere AUTHORITY_TEST_PG_DSN apuntando a una base descartable.
func TestPostgresAdapter(t *testing.T) {
	dsn := os.Getenv("AUTHORITY_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTHORITY_TEST_PG_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.AdapterConnection {
		ctx := context.Background()
		reset, err := pgx.Connect(ctx, dsn)
		require.NoError(t, err)
		_, err = reset.Exec(ctx, `DROP TABLE IF EXISTS action_token, refresh_token, authorization_code, app_user, _migrations`)
		require.NoError(t, err)
		require.NoError(t, reset.Close(ctx))

		conn, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: "postgres", DSN: dsn, AutoMigrate: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	})
}

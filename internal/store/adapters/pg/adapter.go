// Package pg implementa el adapter PostgreSQL usando pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/store"
	"github.com/dropDatabas3/authority/migrations"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// dbtx es satisfecho por *pgxpool.Pool y pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// nullIfEmpty devuelve nil para strings vacíos (columnas opcionales).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation detecta SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	poolCfg.MaxConns = 10
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.MinConns = 2
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &pgConnection{pool: pool, repos: repos{db: pool}}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool *pgxpool.Pool
	repos
}

func (c *pgConnection) Name() string { return "postgres" }

func (c *pgConnection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *pgConnection) Close() error {
	c.pool.Close()
	return nil
}

// InTx usa pgx.BeginFunc: commit si fn retorna nil, rollback en otro caso.
func (c *pgConnection) InTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		return fn(repos{db: tx})
	})
}

// Migrate implementa store.MigratableConnection.
func (c *pgConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	return store.NewMigrator(migrations.PostgresFS, migrations.PostgresDir).Run(ctx, migrationExec{pool: c.pool})
}

// repos implementa store.Repositories sobre un dbtx.
type repos struct{ db dbtx }

func (r repos) Users() repository.UserRepository                  { return &userRepo{db: r.db} }
func (r repos) AuthCodes() repository.AuthorizationCodeRepository { return &codeRepo{db: r.db} }
func (r repos) RefreshTokens() repository.RefreshTokenRepository  { return &refreshRepo{db: r.db} }
func (r repos) ActionTokens() repository.ActionTokenRepository    { return &actionRepo{db: r.db} }

type migrationExec struct{ pool *pgxpool.Pool }

func (m migrationExec) ExecScript(ctx context.Context, script string) error {
	_, err := m.pool.Exec(ctx, script)
	return err
}

func (m migrationExec) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func (m migrationExec) RecordVersion(ctx context.Context, version int, name string) error {
	_, err := m.pool.Exec(ctx, `INSERT INTO _migrations (version, name) VALUES ($1, $2)`, version, name)
	return err
}

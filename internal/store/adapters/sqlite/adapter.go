// Package sqlite implementa el adapter SQLite (modernc.org/sqlite, sin cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/store"
	"github.com/dropDatabas3/authority/migrations"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

// dbtx es satisfecho por *sql.DB y *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Las fechas se guardan como milisegundos UTC.
func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func affected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// dsn agrega los pragmas necesarios: WAL, foreign keys y busy timeout.
func dsn(path string) string {
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	db, err := sql.Open("sqlite", dsn(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// un solo writer: SQLite serializa escrituras y ":memory:" es por conexión
	db.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return &sqliteConnection{db: db, repos: repos{db: db}}, nil
}

type sqliteConnection struct {
	db *sql.DB
	repos
}

func (c *sqliteConnection) Name() string { return "sqlite" }

func (c *sqliteConnection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *sqliteConnection) Close() error { return c.db.Close() }

func (c *sqliteConnection) InTx(ctx context.Context, fn func(tx store.Repositories) error) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(repos{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Migrate implementa store.MigratableConnection.
func (c *sqliteConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	return store.NewMigrator(migrations.SQLiteFS, migrations.SQLiteDir).Run(ctx, migrationExec{db: c.db})
}

type repos struct{ db dbtx }

func (r repos) Users() repository.UserRepository                  { return &userRepo{db: r.db} }
func (r repos) AuthCodes() repository.AuthorizationCodeRepository { return &codeRepo{db: r.db} }
func (r repos) RefreshTokens() repository.RefreshTokenRepository  { return &refreshRepo{db: r.db} }
func (r repos) ActionTokens() repository.ActionTokenRepository    { return &actionRepo{db: r.db} }

type migrationExec struct{ db *sql.DB }

func (m migrationExec) ExecScript(ctx context.Context, script string) error {
	_, err := m.db.ExecContext(ctx, script)
	return err
}

func (m migrationExec) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m migrationExec) RecordVersion(ctx context.Context, version int, name string) error {
	_, err := m.db.ExecContext(ctx, `INSERT INTO _migrations (version, name) VALUES (?, ?)`, version, name)
	return err
}

package store

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Las migraciones SQL se embeben en el binario (paquete migrations).
// Formato de archivo: {version}_{name}.sql (ej: 0001_init.sql).

// Migration representa una migración individual.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

// MigrationExecutor abstrae el driver (pgx vs database/sql).
type MigrationExecutor interface {
	// ExecScript ejecuta un script que puede contener varias sentencias.
	ExecScript(ctx context.Context, script string) error
	AppliedVersions(ctx context.Context) (map[int]bool, error)
	RecordVersion(ctx context.Context, version int, name string) error
}

const migrationsTableSQL = `CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	name    TEXT NOT NULL
)`

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// Migrator aplica migraciones SQL a una base de datos.
type Migrator struct {
	fsys fs.FS
	dir  string
}

// NewMigrator crea un Migrator que lee dir dentro de fsys.
func NewMigrator(fsys fs.FS, dir string) *Migrator {
	return &Migrator{fsys: fsys, dir: dir}
}

// ParseMigrations lee y ordena las migraciones por versión.
func (m *Migrator) ParseMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, _ := strconv.Atoi(matches[1])
		b, err := fs.ReadFile(m.fsys, path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: matches[2], SQL: string(b)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run aplica las migraciones pendientes.
func (m *Migrator) Run(ctx context.Context, exec MigrationExecutor) (*MigrationResult, error) {
	start := time.Now()
	res := &MigrationResult{}

	if err := exec.ExecScript(ctx, migrationsTableSQL); err != nil {
		return res, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := exec.AppliedVersions(ctx)
	if err != nil {
		return res, fmt.Errorf("getting applied migrations: %w", err)
	}
	migs, err := m.ParseMigrations()
	if err != nil {
		return res, fmt.Errorf("parsing migrations: %w", err)
	}

	for _, mig := range migs {
		if applied[mig.Version] {
			res.Skipped = append(res.Skipped, mig.Version)
			continue
		}
		if err := exec.ExecScript(ctx, mig.SQL); err != nil {
			return res, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := exec.RecordVersion(ctx, mig.Version, mig.Name); err != nil {
			return res, fmt.Errorf("recording migration %d: %w", mig.Version, err)
		}
		res.Applied = append(res.Applied, mig.Version)
	}
	res.Duration = time.Since(start)
	return res, nil
}

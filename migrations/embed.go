// Package migrations embeds SQL migration files.
package migrations

import "embed"

// PostgresFS contains the schema for the postgres adapter.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// SQLiteFS contains the schema for the sqlite adapter.
//
//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

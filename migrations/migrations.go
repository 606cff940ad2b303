// Package migrations carries the bot's SQLite schema as embedded goose
// migrations, one numbered SQL file per schema change.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the SQL migration files compiled into the binary, so a
// deployment never depends on files next to the executable.
//
//go:embed *.sql
var FS embed.FS

// Run brings db up to the latest schema version. Already-applied
// migrations are skipped, so calling it on every startup is safe.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

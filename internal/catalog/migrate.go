package catalog

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Version is the catalog schema version this binary understands. It is
// the goose version of the newest embedded migration; a database carrying
// a higher version was written by a newer binary and must not be touched.
const Version int64 = 1

// Migrate upgrades the catalog schema to Version in one transaction per
// migration. Goose's version table is the persisted schema version.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run catalog migrations: %w", err)
	}
	return nil
}

// SchemaVersion reads the catalog schema version recorded in the
// database.
func SchemaVersion(db *sql.DB) (int64, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}

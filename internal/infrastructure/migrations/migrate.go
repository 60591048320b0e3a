package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

const (
	DialectPostgres = "postgres"
	dir             = "sql"
)

func setup(dialect string) error {
	goose.SetBaseFS(embedMigrations)
	return goose.SetDialect(dialect)
}

// Up applies every pending migration.
func Up(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// Down rolls back the last migration.
func Down(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// Status prints the applied state of each migration through goose's logger.
func Status(db *sql.DB, dialect string) error {
	if err := setup(dialect); err != nil {
		return err
	}
	return goose.Status(db, dir)
}

// Version reports the current schema version.
func Version(db *sql.DB, dialect string) (int64, error) {
	if err := setup(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Up applies all pending SQL migrations from dir to the costing schema.
func Up(db *sql.DB, dir string) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}

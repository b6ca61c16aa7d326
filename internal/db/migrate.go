package db

import (
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/edvin/warroom/migrations"
)

// RunMigrations applies every pending migration. An empty dir uses the
// migrations compiled into the binary.
func RunMigrations(databaseURL, dir string) error {
	if databaseURL == "" {
		return fmt.Errorf("run migrations: DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var source fs.FS = migrations.FS
	if dir == "" {
		dir = "."
	} else {
		source = nil
	}
	goose.SetBaseFS(source)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run migrations from %s: %w", dir, err)
	}

	return nil
}

// Embedded lists the migration files compiled into the binary.
func Embedded() ([]string, error) {
	return fs.Glob(migrations.FS, "*.sql")
}

package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationDir = "migrations"

// Migrate applies pending migrations to the database at dsn.
func Migrate(dsn string) error {
	const op = "storage.Migrate"

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}

	db, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	defer db.Close()

	if err := goose.Up(db, migrationDir); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			zap.L().Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("%s: %v", op, err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	zap.L().Info("database migrations applied", zap.Int64("version", version))
	return nil
}

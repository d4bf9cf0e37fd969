package postgres

import (
	"embed"

	"github.com/viralforge/socmed/platform/database"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func RunMigrations(databaseURL string) error {
	return database.Migrate(databaseURL, migrationFS, "migrations")
}

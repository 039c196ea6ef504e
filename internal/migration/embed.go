package migration

import "embed"

const migrationsDir = "migrations"

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var embeddedMigrations embed.FS

func dialectDir(dialect string) string {
	return migrationsDir + "/" + dialect
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/orderetl/internal/config"
	"github.com/railzwaylabs/orderetl/internal/migration"
	"gorm.io/gorm"
)

var (
	ErrSchemaNotInitialized  = errors.New("schema_not_initialized")
	ErrSchemaVersionMismatch = errors.New("schema_version_mismatch")
	ErrSchemaDirty           = errors.New("schema_dirty")
)

// migrationsTable is where golang-migrate records the applied version.
const migrationsTable = "schema_migrations"

type migrationState struct {
	Version uint
	Dirty   bool
}

type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

type schemaGate struct {
	db              *gorm.DB
	dialect         string
	expectedVersion uint
}

func NewSchemaGate(db *gorm.DB, cfg config.Config) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}

	dialect := cfg.Database.Dialect()
	gate := &schemaGate{db: db, dialect: dialect}
	if dialect == config.DriverSQLite {
		return gate, nil
	}

	latest, err := migration.LatestMigrationVersion(dialect)
	if err != nil {
		return nil, err
	}
	gate.expectedVersion = latest
	return gate, nil
}

// MustBeActive fails unless the store carries the schema this build writes to. Versioned dialects
// must sit at the latest embedded migration; sqlite must have every table.
func (g *schemaGate) MustBeActive(ctx context.Context) error {
	if g.dialect == config.DriverSQLite {
		return g.tablesPresent(ctx)
	}

	migrator := g.db.WithContext(ctx).Migrator()
	if !migrator.HasTable(migrationsTable) {
		return fmt.Errorf("%w: %s missing, run migrate", ErrSchemaNotInitialized, migrationsTable)
	}

	var rows []migrationState
	if err := g.db.WithContext(ctx).Raw("SELECT version, dirty FROM " + migrationsTable).Scan(&rows).Error; err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no migration applied, run migrate", ErrSchemaNotInitialized)
	}

	state := rows[0]
	if state.Dirty {
		return fmt.Errorf("%w: version=%d", ErrSchemaDirty, state.Version)
	}
	if state.Version != g.expectedVersion {
		return fmt.Errorf("%w: store=%d expected=%d", ErrSchemaVersionMismatch, state.Version, g.expectedVersion)
	}
	return nil
}

func (g *schemaGate) tablesPresent(ctx context.Context) error {
	migrator := g.db.WithContext(ctx).Migrator()
	for _, model := range migration.Models() {
		if migrator.HasTable(model) {
			continue
		}
		name := fmt.Sprintf("%T", model)
		if t, ok := model.(interface{ TableName() string }); ok {
			name = t.TableName()
		}
		return fmt.Errorf("%w: table %s missing, run migrate", ErrSchemaNotInitialized, name)
	}
	return nil
}

package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/railzwaylabs/orderetl/internal/audit/domain"
	customerdomain "github.com/railzwaylabs/orderetl/internal/customer/domain"
	orderdomain "github.com/railzwaylabs/orderetl/internal/order/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the pipeline, in creation order.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&auditdomain.DeadLetter{},
		&auditdomain.IngestRun{},
	}
}

// RunMigrations provisions the schema. postgres and mysql apply the embedded SQL migrations through
// golang-migrate; sqlite uses gorm AutoMigrate over Models.
func RunMigrations(conn *gorm.DB, log *zap.Logger) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	dialect := conn.Dialector.Name()
	if dialect == "sqlite" {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Info("schema provisioned", zap.String("driver", dialect), zap.String("mode", "automigrate"))
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	unlock, err := acquireMigrationLock(ctx, sqlDB, dialect)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock(context.Background())
	}()

	latestVersion, err := LatestMigrationVersion(dialect)
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, dialectDir(dialect))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := driverFor(dialect, sqlDB)
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	currentVersion, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if currentVersion != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", currentVersion, latestVersion)
	}

	checksum, err := MigrationsChecksum(dialect)
	if err != nil {
		return err
	}
	log.Info("schema provisioned",
		zap.String("driver", dialect),
		zap.Uint("version", currentVersion),
		zap.String("migrations_checksum", checksum),
	)
	return nil
}

// AutoMigrate creates or updates every pipeline table from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func driverFor(dialect string, db *sql.DB) (database.Driver, error) {
	switch dialect {
	case "postgres":
		return postgres.WithInstance(db, &postgres.Config{})
	case "mysql":
		return mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for %s", dialect)
	}
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	if migrator == nil {
		return 0, errors.New("migrator is required")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}

package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	advisoryLockKey  int64 = 7_318_204_655
	mysqlLockName          = "orderetl_migrate"
	mysqlLockTimeout       = 10
)

type unlockFunc func(ctx context.Context) error

// acquireMigrationLock pins one connection and takes a session lock on it so two migrators never interleave.
func acquireMigrationLock(ctx context.Context, db *sql.DB, dialect string) (unlockFunc, error) {
	if db == nil {
		return nil, errors.New("migration lock requires database handle")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock connection: %w", err)
	}

	var (
		lockSQL   string
		unlockSQL string
		args      []any
	)
	switch dialect {
	case "postgres":
		lockSQL, unlockSQL, args = "SELECT pg_try_advisory_lock($1)", "SELECT pg_advisory_unlock($1)", []any{advisoryLockKey}
	case "mysql":
		lockSQL, unlockSQL = "SELECT GET_LOCK(?, ?) = 1", "SELECT RELEASE_LOCK(?) = 1"
		args = []any{mysqlLockName, mysqlLockTimeout}
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("migration lock not supported for %s", dialect)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, lockSQL, args...).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, errors.New("another migration process holds the migration lock")
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, unlockSQL, args[0]).Scan(&released); err != nil {
			return fmt.Errorf("release migration lock: %w", err)
		}
		if !released {
			return errors.New("migration lock was not held by this session")
		}
		return nil
	}, nil
}

// Package dbtest opens throwaway sqlite stores with the pipeline schema for tests.
package dbtest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/orderetl/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an in-memory store with every pipeline table. A single connection keeps the
// memory database alive for the whole test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return conn
}

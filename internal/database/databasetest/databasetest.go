// Package databasetest opens migrated sqlite stores for tests.
package databasetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"exchangeflow/internal/config"
	"exchangeflow/internal/database"
	"exchangeflow/pkg/logger"
)

// Open returns a migrated sqlite database stored under t.TempDir. The file
// path is returned so tests can reopen the same store.
func Open(t testing.TB) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "exchange.db")
	return Reopen(t, path), path
}

func Reopen(t testing.TB, path string) *sql.DB {
	t.Helper()

	db, dialect, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: path}, logger.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.NewMigrationService(db, dialect, logger.Nop()).RunMigrations(); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

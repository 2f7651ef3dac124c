package database

import (
	"database/sql"
	"fmt"
	"strings"

	"exchangeflow/internal/config"
	"exchangeflow/pkg/logger"
)

// Dialect selects the few DDL fragments that differ between drivers.
// Queries themselves use $N placeholders, which both drivers accept.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

func (d Dialect) serialKey() string {
	if d == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Open opens the store handle once for the process lifetime. Drivers are
// registered by the importing binary.
func Open(cfg config.DatabaseConfig, log logger.Logger) (*sql.DB, Dialect, error) {
	dialect := Dialect(cfg.Driver)

	var dsn string
	switch dialect {
	case SQLite:
		dsn = sqliteDSN(cfg.DSN)
	case Postgres:
		dsn = cfg.PostgresDSN()
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("could not open database: %w", err)
	}

	if dialect == SQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("could not reach database: %w", err)
	}

	log.Info("Database connection established", map[string]interface{}{"driver": cfg.Driver})
	return db, dialect, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "exchange.db"
	}
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql" // "mysql" driver for database/sql
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver for database/sql
	_ "github.com/lib/pq"              // "postgres" driver for database/sql
	_ "github.com/mattn/go-sqlite3"    // "sqlite3" driver for database/sql

	"github.com/guttosm/tradeexport/config"
)

// pingTimeout bounds the connectivity check done by InitDB.
const pingTimeout = 10 * time.Second

// sqlOpener is an indirection for unit testing; defaults to sqlx.Open.
var sqlOpener = sqlx.Open

// InitDB opens the trade history database described by cfg.Database and
// pings it once.
//
// Behavior:
//   - Uses cfg.Database.Driver and the DSN computed by config (built on the
//     fly when empty, e.g. for hand-made test configs).
//   - Returns a live *sqlx.DB whose bindvar style matches the driver.
//
// Example usage:
//
//	db, err := app.InitDB(config.AppConfig)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func InitDB(cfg config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN
	if dsn == "" {
		var err error
		if dsn, err = cfg.Database.BuildDSN(); err != nil {
			return nil, err
		}
	}

	db, err := sqlOpener(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Database.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Database.Driver, err)
	}

	return db, nil
}

// dbOpener is an indirection used by InitializeApp and the CLI; overridden in
// tests to avoid real connections.
var dbOpener = InitDB

// OpenDB opens the configured database through the test seam.
func OpenDB(cfg config.Config) (*sqlx.DB, error) {
	return dbOpener(cfg)
}

// Package db opens instrumented database handles and applies the schema.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers "duckdb"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"sqlpanel/internal/domain"
)

// Driver names accepted by OpenInstrumented.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// OpenInstrumented opens dsn with the registered driver driverName wrapped by
// hooks, so every statement executed through the returned pool passes through
// hooks.Before and hooks.After.
//
// The pool holds a single connection: SQLite serializes writers anyway, and
// each duckdb connection opened from a DSN is its own database instance.
func OpenInstrumented(driverName, dsn string, hooks sqlhooks.Hooks) (*sql.DB, error) {
	base, err := registeredDriver(driverName)
	if err != nil {
		return nil, err
	}

	if driverName == DriverSQLite {
		dsn = buildDSN(dsn, "write")
	}

	db := sql.OpenDB(dsnConnector{dsn: dsn, drv: sqlhooks.Wrap(base, hooks)})
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Verify the connection is usable.
	ctx, cancel := context.WithTimeout(domain.WithoutRecording(context.Background()), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	return db, nil
}

func registeredDriver(name string) (driver.Driver, error) {
	handle, err := sql.Open(name, "")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	drv := handle.Driver()
	_ = handle.Close()
	return drv, nil
}

// dsnConnector lets sql.OpenDB use a driver that is not registered under its
// own name.
type dsnConnector struct {
	dsn string
	drv driver.Driver
}

func (c dsnConnector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c dsnConnector) Driver() driver.Driver { return c.drv }

// buildDSN constructs a SQLite DSN with hardened parameters. In-memory
// databases and DSNs that already carry parameters are returned unchanged.
func buildDSN(path string, mode string) string {
	if path == "" || path == ":memory:" || strings.Contains(path, "?") || strings.Contains(path, "mode=memory") {
		return path
	}

	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == "write" {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}

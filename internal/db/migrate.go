package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/pressly/goose/v3"

	"sqlpanel/internal/domain"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema. SQLite goes through goose;
// duckdb has no goose dialect, so the Up sections of the same files are
// executed directly in file order; they are written to be re-runnable.
func RunMigrations(ctx context.Context, db *sql.DB, driverName string) error {
	ctx = domain.WithoutRecording(ctx)

	switch driverName {
	case DriverSQLite:
		goose.SetBaseFS(migrationsFS)
		if err := goose.SetDialect("sqlite3"); err != nil {
			return fmt.Errorf("goose set dialect: %w", err)
		}
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		return nil
	case DriverDuckDB:
		return applyUp(ctx, db)
	default:
		return fmt.Errorf("migrations: unsupported driver %q", driverName)
	}
}

func applyUp(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationsFS, migrationsDir+"/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, stmt := range upStatements(string(raw)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
	}
	return nil
}

// upStatements returns the statements between "-- +goose Up" and
// "-- +goose Down". Statements are separated by semicolons at line ends.
func upStatements(src string) []string {
	var (
		stmts []string
		cur   strings.Builder
		inUp  bool
	)
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-- +goose Up"):
			inUp = true
			continue
		case strings.HasPrefix(trimmed, "-- +goose Down"):
			inUp = false
			continue
		}
		if !inUp || trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

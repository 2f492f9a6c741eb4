package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/qustavo/sqlhooks/v2"
)

// OpenTestSQLite opens an instrumented SQLite database in t.TempDir(), applies
// the schema and registers cleanup. A nil hooks value records nothing.
func OpenTestSQLite(t *testing.T, hooks sqlhooks.Hooks) *sql.DB {
	t.Helper()

	if hooks == nil {
		hooks = NopHooks{}
	}
	path := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := OpenInstrumented(DriverSQLite, path, hooks)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(context.Background(), db, DriverSQLite); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}

// NopHooks satisfies sqlhooks.Hooks without doing anything.
type NopHooks struct{}

func (NopHooks) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return ctx, nil
}

func (NopHooks) After(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return ctx, nil
}

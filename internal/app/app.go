// Package app wires the demo application: configuration, the instrumented
// database, the debug toolbar with its SQL panel and the HTTP router.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"sqlpanel/internal/config"
	internaldb "sqlpanel/internal/db"
	"sqlpanel/internal/db/repository"
	"sqlpanel/internal/middleware"
	"sqlpanel/internal/sqlpanel"
	"sqlpanel/internal/toolbar"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App is the fully wired demo application.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	users    *repository.UserRepo
	toolbar  *toolbar.Toolbar   // nil when the toolbar is disabled
	debugger *sqlpanel.Debugger // nil when the toolbar is disabled
}

// New opens the database, applies the schema, seeds demo rows and, when
// enabled, attaches the debug toolbar.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{cfg: cfg, logger: logger}

	if cfg.Toolbar.Enabled {
		tb := toolbar.New(logger, toolbar.WithDBStats(func() sql.DBStats {
			if a.db == nil {
				return sql.DBStats{}
			}
			return a.db.Stats()
		}))
		if len(cfg.Toolbar.Panels) > 0 {
			tb.SetPanels(cfg.Toolbar.Panels)
		}

		dbg, err := sqlpanel.Configure(tb, sqlpanel.Options{
			DriverName:          cfg.DBDriver,
			DSN:                 cfg.DBDSN,
			SecretKey:           cfg.SecretKey,
			ReplaceBuiltinPanel: cfg.Toolbar.ReplaceSQLPanel,
			InternalPackages:    cfg.Toolbar.InternalPackages,
			Logger:              logger,
			RerunLimit: middleware.RateLimitConfig{
				RequestsPerSecond: cfg.Toolbar.RerunRateLimitRPS,
				Burst:             cfg.Toolbar.RerunRateLimitBurst,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("configure sql panel: %w", err)
		}
		a.toolbar, a.debugger, a.db = tb, dbg, dbg.DB()
		logger.Info("debug toolbar enabled", "mount", tb.MountPath(), "panels", tb.Panels())
	} else {
		db, err := internaldb.OpenInstrumented(cfg.DBDriver, cfg.DBDSN, internaldb.NopHooks{})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
	}

	if err := internaldb.RunMigrations(ctx, a.db, cfg.DBDriver); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.users = repository.NewUserRepo(a.db)
	if err := a.users.Seed(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	return a, nil
}

// Toolbar returns the debug toolbar, or nil when it is disabled.
func (a *App) Toolbar() *toolbar.Toolbar { return a.toolbar }

// Debugger returns the SQL panel, or nil when the toolbar is disabled.
func (a *App) Debugger() *sqlpanel.Debugger { return a.debugger }

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Package sqlpanel adds statement recording to a toolbar.
//
// Configure opens the application database through a driver wrapped with the
// recorder hooks, registers the SQL panel with the toolbar and mounts the
// views that re-execute signed SELECT statements. Everything it creates is
// owned by the returned Debugger.
package sqlpanel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"sqlpanel/internal/callsite"
	"sqlpanel/internal/db"
	"sqlpanel/internal/domain"
	"sqlpanel/internal/engine"
	"sqlpanel/internal/middleware"
	"sqlpanel/internal/recorder"
	"sqlpanel/internal/scope"
	"sqlpanel/internal/signer"
	"sqlpanel/internal/toolbar"
	"sqlpanel/internal/ui"
)

// PanelID is the toolbar id of the SQL panel.
const PanelID = "sqlpanel.sql"

// Options configures the SQL panel.
type Options struct {
	DriverName string // "sqlite3" or "duckdb"
	DSN        string
	SecretKey  string

	// ReplaceBuiltinPanel swaps the toolbar's built-in SQL panel for this one
	// in place. Otherwise the panel is only registered and the operator
	// enables PanelID explicitly.
	ReplaceBuiltinPanel bool

	// InternalPackages are skipped by the call-site resolver in addition to
	// callsite.DefaultExcluded.
	InternalPackages []string

	// Identity names the logical unit of a context. It must be unique per
	// concurrent unit. Defaults to the scope id set by middleware.RequestID.
	Identity scope.IdentityFunc

	Logger *slog.Logger

	// RerunLimit rate limits the re-execution views per client. A zero
	// RequestsPerSecond disables limiting.
	RerunLimit middleware.RateLimitConfig
}

// Debugger owns the state of one configured SQL panel.
type Debugger struct {
	logger   *slog.Logger
	driver   string
	signer   *signer.Signer
	registry *scope.Registry
	resolver *callsite.Resolver
	recorder *recorder.Recorder
	db       *sql.DB
	engine   *engine.Engine
	base     string
}

// Configure builds a Debugger and attaches it to tb.
func Configure(tb *toolbar.Toolbar, opts Options) (*Debugger, error) {
	if tb == nil {
		return nil, errors.New("sqlpanel: toolbar is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlpanel")

	s, err := signer.New(opts.SecretKey, signer.DefaultSalt)
	if err != nil {
		return nil, fmt.Errorf("sqlpanel: %w", err)
	}

	identity := opts.Identity
	if identity == nil {
		identity = middleware.ScopeIDFromContext
	}
	registry := scope.NewRegistry(identity)

	excluded := append(slices.Clone(callsite.DefaultExcluded), opts.InternalPackages...)
	resolver := callsite.NewResolver(excluded...)
	rec := recorder.New(registry, s, resolver, logger)

	sqlDB, err := db.OpenInstrumented(opts.DriverName, opts.DSN, rec)
	if err != nil {
		return nil, fmt.Errorf("sqlpanel: %w", err)
	}

	d := &Debugger{
		logger:   logger,
		driver:   opts.DriverName,
		signer:   s,
		registry: registry,
		resolver: resolver,
		recorder: rec,
		db:       sqlDB,
		engine:   engine.New(sqlDB, opts.DriverName),
		base:     tb.MountPath(),
	}

	tb.Register(PanelID, d.newPanel(tb.ViewsPath()))
	if opts.ReplaceBuiltinPanel && !tb.Replace(toolbar.BuiltinSQLPanelID, PanelID) {
		logger.Warn("built-in SQL panel is not enabled, nothing to replace", "panel", PanelID)
	}

	selectView, explainView := d.view(false), d.view(true)
	if opts.RerunLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(opts.RerunLimit)
		selectView = limiter.Middleware(selectView)
		explainView = limiter.Middleware(explainView)
	}
	tb.Handle(ui.SQLSelectPath, selectView)
	tb.Handle(ui.SQLExplainPath, explainView)

	logger.Info("sql panel configured",
		"driver", opts.DriverName,
		"replaced_builtin", opts.ReplaceBuiltinPanel,
		"internal_packages", len(opts.InternalPackages),
	)
	return d, nil
}

// DB returns the instrumented pool. Statements executed through it are
// recorded for the active request.
func (d *Debugger) DB() *sql.DB { return d.db }

// Engine returns the re-execution engine.
func (d *Debugger) Engine() *engine.Engine { return d.engine }

// Registry returns the scope registry the recorder writes to.
func (d *Debugger) Registry() *scope.Registry { return d.registry }

// Resolver returns the call-site resolver used for recorded statements.
func (d *Debugger) Resolver() *callsite.Resolver { return d.resolver }

// Close closes the database.
func (d *Debugger) Close() error { return d.db.Close() }

// Ping checks the database connection without recording it.
func (d *Debugger) Ping(ctx context.Context) error {
	return d.db.PingContext(domain.WithoutRecording(ctx))
}

// Package toolbar is a small in-page debug toolbar for net/http applications.
//
// A Toolbar owns an ordered list of panel ids and a factory per id. For every
// request passing through Middleware it instantiates the enabled panels,
// buffers the response and, for HTML pages, injects the rendered toolbar
// before the closing body tag. Panels may expose auxiliary pages through the
// toolbar's view router.
package toolbar

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	gomponents "maragu.dev/gomponents"

	"sqlpanel/internal/middleware"
	"sqlpanel/internal/ui"
	"sqlpanel/internal/ui/assets"
)

// DefaultMountPath is where the host mounts Handler.
const DefaultMountPath = "/_debug_toolbar"

// Built-in panel ids.
const (
	RequestVarsPanelID = "toolbar.request_vars"
	HeadersPanelID     = "toolbar.headers"
	TimerPanelID       = "toolbar.timer"
	BuiltinSQLPanelID  = "toolbar.sql"
)

// DefaultPanels is the panel order of a new Toolbar.
var DefaultPanels = []string{
	RequestVarsPanelID,
	HeadersPanelID,
	TimerPanelID,
	BuiltinSQLPanelID,
}

// Panel is one entry of the toolbar.
type Panel interface {
	NavTitle() string
	NavSubtitle() string
	Title() string
	// URL makes the nav entry a plain link when non-empty.
	URL() string
	HasContent() bool
	Content(ctx context.Context) (gomponents.Node, error)
}

// RequestProcessor is implemented by panels that inspect the request before
// the handler runs.
type RequestProcessor interface {
	ProcessRequest(r *http.Request)
}

// ResponseProcessor is implemented by panels that inspect the response after
// the handler returned.
type ResponseProcessor interface {
	ProcessResponse(r *http.Request, status int, header http.Header)
}

// Finisher is implemented by panels that release per-request state. Finish
// runs once the response is complete, whether or not the toolbar was
// rendered.
type Finisher interface {
	Finish(ctx context.Context)
}

// Factory creates the per-request instance of a panel.
type Factory func(r *http.Request) Panel

// Option configures a Toolbar.
type Option func(*Toolbar)

// WithMountPath sets the path Handler is mounted at.
func WithMountPath(path string) Option {
	return func(t *Toolbar) { t.mount = "/" + strings.Trim(path, "/") }
}

// WithDBStats feeds connection pool statistics to the built-in SQL panel.
func WithDBStats(stats func() sql.DBStats) Option {
	return func(t *Toolbar) { t.dbStats = stats }
}

// WithRequestID replaces the function used to label the toolbar with the
// request id.
func WithRequestID(fn func(ctx context.Context) string) Option {
	return func(t *Toolbar) { t.requestID = fn }
}

// Toolbar holds the panel registry and the view router.
type Toolbar struct {
	logger    *slog.Logger
	mount     string
	dbStats   func() sql.DBStats
	requestID func(ctx context.Context) string

	mu        sync.RWMutex
	factories map[string]Factory
	order     []string

	views chi.Router
}

// New creates a Toolbar with the built-in panels enabled.
func New(logger *slog.Logger, opts ...Option) *Toolbar {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Toolbar{
		logger:    logger.With("component", "toolbar"),
		mount:     DefaultMountPath,
		requestID: middleware.RequestIDFromContext,
		factories: make(map[string]Factory),
		order:     slices.Clone(DefaultPanels),
		views:     chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.factories[RequestVarsPanelID] = newRequestVarsPanel
	t.factories[HeadersPanelID] = newHeadersPanel
	t.factories[TimerPanelID] = newTimerPanel
	t.factories[BuiltinSQLPanelID] = func(*http.Request) Panel {
		return &poolPanel{stats: t.dbStats}
	}
	return t
}

// MountPath returns the path Handler is expected to be mounted at.
func (t *Toolbar) MountPath() string { return t.mount }

// ViewsPath returns the URL prefix of routes registered with Handle.
func (t *Toolbar) ViewsPath() string { return t.mount + "/views" }

// Register makes a panel factory available under id. It does not enable it.
func (t *Toolbar) Register(id string, factory Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[id] = factory
}

// Replace swaps oldID for newID in the panel order, keeping its position. It
// reports whether oldID was enabled.
func (t *Toolbar) Replace(oldID, newID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.order, oldID) {
		return false
	}
	if oldID != newID {
		t.order = slices.DeleteFunc(t.order, func(id string) bool { return id == newID })
	}
	t.order[slices.Index(t.order, oldID)] = newID
	return true
}

// Enable appends id to the panel order unless it is already present.
func (t *Toolbar) Enable(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.Contains(t.order, id) {
		t.order = append(t.order, id)
	}
}

// Panels returns the ordered ids of the enabled panels.
func (t *Toolbar) Panels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

// SetPanels replaces the panel order. Duplicates and blanks are dropped.
func (t *Toolbar) SetPanels(ids []string) {
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(order, id) {
			continue
		}
		order = append(order, id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = order
}

// Handle registers a panel view below ViewsPath for GET and POST.
func (t *Toolbar) Handle(pattern string, h http.Handler) {
	t.views.Get(pattern, h.ServeHTTP)
	t.views.Post(pattern, h.ServeHTTP)
}

// Handler serves the toolbar's static assets and panel views. Mount it at
// MountPath.
func (t *Toolbar) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/static/*", assets.FileServer(t.mount+"/static/"))
	r.Mount("/views", t.views)
	return r
}

type instance struct {
	id    string
	panel Panel
}

// instantiate creates the enabled panels for r. Ids without a factory are
// skipped and logged.
func (t *Toolbar) instantiate(r *http.Request) []instance {
	t.mu.RLock()
	order := slices.Clone(t.order)
	factories := make([]Factory, len(order))
	for i, id := range order {
		factories[i] = t.factories[id]
	}
	t.mu.RUnlock()

	out := make([]instance, 0, len(order))
	for i, id := range order {
		if factories[i] == nil {
			t.logger.Warn("toolbar panel not registered", "panel", id)
			continue
		}
		out = append(out, instance{id: id, panel: factories[i](r)})
	}
	return out
}

// render builds the toolbar for one request. A panel whose content fails is
// shown with the error instead of breaking the page.
func (t *Toolbar) render(ctx context.Context, panels []instance) gomponents.Node {
	views := make([]ui.ToolbarPanel, 0, len(panels))
	for _, inst := range panels {
		p := inst.panel
		view := ui.ToolbarPanel{
			ID:          inst.id,
			NavTitle:    p.NavTitle(),
			NavSubtitle: p.NavSubtitle(),
			Title:       p.Title(),
			URL:         p.URL(),
			HasContent:  p.HasContent(),
		}
		if view.HasContent && view.URL == "" {
			content, err := p.Content(ctx)
			if err != nil {
				t.logger.Error("render toolbar panel", "panel", inst.id, "error", err)
				content = gomponents.Text(fmt.Sprintf("Panel failed to render: %v", err))
			}
			view.Content = content
		}
		views = append(views, view)
	}
	return ui.Toolbar(t.mount, t.requestID(ctx), views)
}

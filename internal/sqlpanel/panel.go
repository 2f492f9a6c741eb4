package sqlpanel

import (
	"context"
	"net/http"
	"strconv"

	gomponents "maragu.dev/gomponents"

	"sqlpanel/internal/toolbar"
	"sqlpanel/internal/ui"
)

var (
	_ toolbar.Panel    = (*panel)(nil)
	_ toolbar.Finisher = (*panel)(nil)
)

// panel is the per-request view of the statements recorded for that request.
type panel struct {
	d         *Debugger
	ctx       context.Context
	viewsBase string
}

func (d *Debugger) newPanel(viewsBase string) toolbar.Factory {
	return func(r *http.Request) toolbar.Panel {
		return &panel{d: d, ctx: r.Context(), viewsBase: viewsBase}
	}
}

func (p *panel) NavTitle() string { return "SQL" }

func (p *panel) NavSubtitle() string {
	n := len(p.d.registry.Snapshot(p.ctx))
	if n == 1 {
		return "1 query"
	}
	return strconv.Itoa(n) + " queries"
}

func (p *panel) Title() string { return "SQL queries" }

func (p *panel) URL() string { return "" }

func (p *panel) HasContent() bool {
	return len(p.d.registry.Snapshot(p.ctx)) > 0
}

// Content consumes the recorded statements; a second call renders nothing.
func (p *panel) Content(ctx context.Context) (gomponents.Node, error) {
	return ui.SQLPanelContent(p.viewsBase, p.d.registry.Take(ctx)), nil
}

// Finish drops the request's scope, including statements of responses the
// toolbar did not render.
func (p *panel) Finish(ctx context.Context) {
	p.d.registry.ClearCurrent(ctx)
}

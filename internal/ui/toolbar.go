package ui

import (
	"strconv"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

// ToolbarPanel is the rendered state of one toolbar panel.
type ToolbarPanel struct {
	ID          string
	NavTitle    string
	NavSubtitle string
	Title       string
	URL         string // when set, the nav entry links here instead of opening inline content
	HasContent  bool
	Content     Node
}

// KeyValue is one row of a two-column panel table.
type KeyValue struct {
	Key   string
	Value string
}

// Toolbar renders the toolbar chrome injected into host pages. base is the
// path the toolbar handler is mounted at.
func Toolbar(base, requestID string, panels []ToolbarPanel) Node {
	nav := make([]Node, 0, len(panels))
	bodies := make([]Node, 0, len(panels))
	for _, p := range panels {
		nav = append(nav, toolbarNavItem(p))
		if p.HasContent && p.URL == "" {
			bodies = append(bodies, toolbarPanelBody(p))
		}
	}

	return Div(
		ID("sqlpanel-debug-toolbar"),
		Class("tb"),
		data.Signals(map[string]any{"tbpanel": "", "tbopen": true}),
		Link(Rel("stylesheet"), Href(base+"/static/toolbar.css")),
		Script(Type("module"), Src(datastarSrc)),
		Label(
			Class("tb-handle"),
			Input(Type("checkbox"), Class("sr-only"), data.Bind("tbopen")),
			Text("DT"),
		),
		Aside(
			Class("tb-bar"),
			data.Show("$tbopen"),
			Div(
				Class("tb-brand"),
				Strong(Text("Debug toolbar")),
				Small(Class("tb-muted"), Text(requestID)),
			),
			Ul(Class("tb-nav"), Group(nav)),
		),
		Group(bodies),
	)
}

func toolbarNavItem(p ToolbarPanel) Node {
	label := Group([]Node{
		Span(Class("tb-nav-title"), Text(p.NavTitle)),
		If(p.NavSubtitle != "", Small(Class("tb-muted"), Text(p.NavSubtitle))),
	})

	switch {
	case p.URL != "":
		return Li(A(Href(p.URL), Title(p.Title), label))
	case p.HasContent:
		return Li(Label(
			Title(p.Title),
			Input(Type("radio"), Class("sr-only"), Name("tbpanel"), Value(p.ID), data.Bind("tbpanel")),
			label,
		))
	default:
		return Li(Class("tb-disabled"), label)
	}
}

func toolbarPanelBody(p ToolbarPanel) Node {
	return Section(
		Class("tb-panel"),
		ID("tb-panel-"+p.ID),
		data.Show("$tbpanel === "+strconv.Quote(p.ID)),
		Header(
			Class("tb-panel-header"),
			H2(Text(p.Title)),
			Label(
				Class("tb-close"),
				Input(Type("radio"), Class("sr-only"), Name("tbpanel"), Value(""), data.Bind("tbpanel")),
				Text("Close"),
			),
		),
		Div(Class("tb-panel-body"), p.Content),
	)
}

// KeyValueTable renders rows as a two-column table.
func KeyValueTable(keyHeader, valueHeader string, rows []KeyValue) Node {
	if len(rows) == 0 {
		return P(Class("tb-muted"), Text("None"))
	}
	trs := make([]Node, 0, len(rows))
	for _, row := range rows {
		trs = append(trs, Tr(Td(Code(Text(row.Key))), Td(Text(row.Value))))
	}
	return Table(
		Class("tb-table"),
		THead(Tr(Th(Text(keyHeader)), Th(Text(valueHeader)))),
		TBody(Group(trs)),
	)
}

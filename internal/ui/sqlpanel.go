package ui

import (
	"fmt"
	"net/url"
	"strconv"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"

	"sqlpanel/internal/domain"
	"sqlpanel/internal/engine"
)

// SQL panel view paths, relative to the toolbar's views mount.
const (
	SQLSelectPath  = "/sqla/sql_select"
	SQLExplainPath = "/sqla/sql_explain"
)

// SQLPanelContent renders the recorded queries of one request. viewsBase is
// the URL prefix of the panel's re-execution views.
func SQLPanelContent(viewsBase string, entries []domain.QueryEntry) Node {
	if len(entries) == 0 {
		return emptyStateCard("No queries were recorded for this request.")
	}

	var total, slowest float64
	for _, e := range entries {
		total += e.Duration
		if e.Duration > slowest {
			slowest = e.Duration
		}
	}

	rows := make([]Node, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, sqlEntryRow(viewsBase, i+1, e, slowest))
	}

	return Div(
		Class("sql-panel"),
		P(Class("tb-muted"), Text(fmt.Sprintf("%s in %s", queryCount(len(entries)), formatMillis(total)))),
		quickFilterCard("sqlq", "Filter by SQL or call site"),
		Table(
			Class("tb-table sql-queries"),
			THead(Tr(Th(Text("#")), Th(Text("Time")), Th(Text("Query")), Th(Text("Context")))),
			TBody(Group(rows)),
		),
	)
}

func sqlEntryRow(viewsBase string, n int, e domain.QueryEntry, slowest float64) Node {
	width := 0.0
	if slowest > 0 {
		width = e.Duration / slowest * 100
	}

	var actions Node
	if e.Rerunnable() {
		q := url.Values{}
		q.Set("query", *e.SignedQuery)
		q.Set("duration", strconv.FormatFloat(e.Duration, 'f', -1, 64))
		actions = Div(
			Class("sql-actions"),
			A(Href(viewsBase+SQLSelectPath+"?"+q.Encode()), Target("_blank"), Rel("noopener"), Text("SELECT")),
			A(Href(viewsBase+SQLExplainPath+"?"+q.Encode()), Target("_blank"), Rel("noopener"), Text("EXPLAIN")),
		)
	} else {
		actions = Div(Class("sql-actions tb-muted"), Text("not re-executable"))
	}

	return Tr(
		data.Show(containsExpr("sqlq", e.SQL+" "+e.ContextLong)),
		Td(Text(strconv.Itoa(n))),
		Td(
			Class("sql-duration"),
			Text(formatMillis(e.Duration)),
			Div(Class("sql-bar"), Div(Class("sql-bar-fill"), Style(fmt.Sprintf("width: %.1f%%", width)))),
		),
		Td(highlightSQL(e.SQL), actions),
		Td(Span(Title(e.ContextLong), Text(e.Context))),
	)
}

func queryCount(n int) string {
	if n == 1 {
		return "1 query"
	}
	return strconv.Itoa(n) + " queries"
}

// SQLResultView is the data of a re-execution page.
type SQLResultView struct {
	Title    string // "SQL Select" or "SQL Explain"
	SQL      string // statement with parameters interpolated
	Duration float64
	Result   *engine.Result
}

// SQLResultPage renders the outcome of a re-executed statement. base is the
// path the toolbar handler is mounted at.
func SQLResultPage(base string, v SQLResultView) Node {
	headers := make([]Node, 0, len(v.Result.Columns))
	for _, col := range v.Result.Columns {
		headers = append(headers, Th(Text(col)))
	}

	rows := make([]Node, 0, len(v.Result.Rows))
	for _, row := range v.Result.Rows {
		cells := make([]Node, 0, len(row))
		for _, val := range row {
			cells = append(cells, Td(Text(cellString(val))))
		}
		rows = append(rows, Tr(Group(cells)))
	}

	var result Node
	if len(v.Result.Columns) == 0 {
		result = P(Class("tb-muted"), Text("The statement returned no columns."))
	} else {
		result = Table(
			Class("tb-table"),
			THead(Tr(Group(headers))),
			TBody(Group(rows)),
		)
	}

	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(v.Title)),
			Link(Rel("icon"), Href("data:,")),
			Link(Rel("stylesheet"), Href(base+"/static/toolbar.css")),
		),
		Body(
			Class("tb-page"),
			Main(
				H1(Text(v.Title)),
				Dl(
					Class("tb-facts"),
					Dt(Text("Original query duration")), Dd(Text(formatMillis(v.Duration))),
					Dt(Text("Re-executed in")), Dd(Text(formatMillis(v.Result.Elapsed.Seconds()))),
					Dt(Text("Rows")), Dd(Text(strconv.Itoa(v.Result.RowCount))),
				),
				highlightSQL(v.SQL),
				result,
			),
		),
	)
}

package ui

import (
	"strconv"
	"strings"
	"time"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

const datastarSrc = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"

// AppStaticPath is where the demo application serves the embedded assets.
const AppStaticPath = "/static/"

func appPage(title string, body ...Node) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | sqlpanel demo")),
			Link(Rel("icon"), Href("data:,")),
			Link(Rel("stylesheet"), Href(AppStaticPath+"app.css")),
		),
		Body(
			Main(
				Class("layout"),
				Div(
					Class("topbar"),
					A(Href("/"), Strong(Text("sqlpanel demo"))),
					P(Class(mutedClass()), Text("Every page runs real queries; open the SQL panel to inspect them.")),
				),
				H1(Class("page-title"), Text(title)),
				Group(body),
			),
		),
	)
}

// ErrorPage renders a standalone error document.
func ErrorPage(title, message string) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title)),
			Link(Rel("icon"), Href("data:,")),
			Link(Rel("stylesheet"), Href(AppStaticPath+"app.css")),
		),
		Body(
			Main(
				Class("layout"),
				H1(Class("page-title"), Text(title)),
				P(Text(message)),
				P(A(Href("/"), Text("Back to overview"))),
			),
		),
	)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.RFC3339)
}

func formatMillis(seconds float64) string {
	return strconv.FormatFloat(seconds*1000, 'f', 2, 64) + " ms"
}

func containsExpr(signal, value string) string {
	lower := strings.ToLower(value)
	return "$" + signal + " === '' || " + strconv.Quote(lower) + ".includes($" + signal + ".toLowerCase())"
}

func cardClass(extra ...string) string {
	parts := []string{"card"}
	parts = append(parts, extra...)
	return strings.Join(parts, " ")
}

func mutedClass() string {
	return "muted"
}

func quickFilterCard(signal, placeholder string) Node {
	return Div(
		Class(cardClass("toolbar")),
		data.Signals(map[string]any{signal: ""}),
		Label(Class("sr-only"), Text("Quick filter")),
		Input(Type("search"), Placeholder(placeholder), data.Bind(signal), AutoComplete("off")),
	)
}

func emptyStateCard(message string) Node {
	return Div(
		Class(cardClass("blankslate")),
		P(Class(mutedClass()), Text(message)),
	)
}

package ui

import (
	"fmt"
	"net/http"
	"strconv"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"

	"sqlpanel/internal/domain"
)

// UsersPage lists the demo users.
func UsersPage(users []domain.UserSummary) Node {
	if len(users) == 0 {
		return appPage("Users", emptyStateCard("No users yet."))
	}

	rows := make([]Node, 0, len(users))
	for _, u := range users {
		rows = append(rows, Tr(
			data.Show(containsExpr("q", u.Name+" "+u.Email)),
			Td(A(Href(fmt.Sprintf("/users/%d", u.ID)), Text(u.Name))),
			Td(Text(u.Email)),
			Td(Text(strconv.FormatInt(u.VisitCount, 10))),
			Td(Text(strconv.FormatInt(u.OrderCount, 10))),
			Td(Text(formatCents(u.TotalCents))),
		))
	}

	return appPage("Users",
		quickFilterCard("q", "Filter by name or email"),
		Div(
			Class(cardClass("table-wrap")),
			Table(
				THead(Tr(Th(Text("Name")), Th(Text("Email")), Th(Text("Visits")), Th(Text("Orders")), Th(Text("Total")))),
				TBody(Group(rows)),
			),
		),
		P(Class(mutedClass()), A(Href("/api/users"), Text("Same data as JSON")), Text(" (not instrumented by the toolbar chrome).")),
	)
}

// UserPage shows one user with their orders.
func UserPage(r *http.Request, u *domain.User, orders []domain.Order, minCents int64) Node {
	orderRows := make([]Node, 0, len(orders))
	for _, o := range orders {
		orderRows = append(orderRows, Tr(
			Td(Text(strconv.FormatInt(o.ID, 10))),
			Td(Text(formatCents(o.TotalCents))),
			Td(Text(formatTime(o.CreatedAt))),
		))
	}

	var ordersNode Node
	if len(orders) == 0 {
		ordersNode = emptyStateCard(fmt.Sprintf("No orders of at least %s.", formatCents(minCents)))
	} else {
		ordersNode = Div(
			Class(cardClass("table-wrap")),
			Table(
				THead(Tr(Th(Text("Order")), Th(Text("Total")), Th(Text("Placed")))),
				TBody(Group(orderRows)),
			),
		)
	}

	return appPage(u.Name,
		Div(
			Class(cardClass()),
			Dl(
				Dt(Text("Email")), Dd(Text(u.Email)),
				Dt(Text("Visits")), Dd(Text(strconv.FormatInt(u.VisitCount, 10))),
				Dt(Text("Member since")), Dd(Text(formatTime(u.CreatedAt))),
			),
			Form(
				Method("post"),
				Action(fmt.Sprintf("/users/%d/visits", u.ID)),
				CSRFField(r),
				Button(Type("submit"), Class("btn"), Text("Record a visit")),
			),
		),
		Form(
			Class(cardClass("toolbar")),
			Method("get"),
			Label(Text("Minimum order (cents) ")),
			Input(Type("number"), Name("min"), Value(strconv.FormatInt(minCents, 10)), Min("0")),
			Button(Type("submit"), Class("btn"), Text("Filter")),
		),
		ordersNode,
		P(A(Href("/"), Text("Back to users"))),
	)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

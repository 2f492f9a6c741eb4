// Package ui renders the HTML of the debug toolbar, the SQL panel views and
// the demo application.
package ui

import (
	"errors"
	"fmt"
	"net/http"

	gomponents "maragu.dev/gomponents"

	"sqlpanel/internal/domain"
)

// Render writes node as an HTML response.
func Render(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

// ErrorStatus maps a domain error to an HTTP status and page title.
func ErrorStatus(err error) (int, string) {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var notAcceptable *domain.NotAcceptableError
	switch {
	case errors.As(err, &notAcceptable):
		return http.StatusNotAcceptable, "Not Acceptable"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "Not Found"
	case errors.As(err, &validation):
		return http.StatusBadRequest, "Invalid Request"
	case errors.As(err, &conflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "Unexpected Error"
	}
}

// RenderError renders err as an error page with the matching status.
func RenderError(w http.ResponseWriter, err error) {
	status, title := ErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred while loading this page."
	}
	Render(w, status, ErrorPage(title, message))
}

func cellString(value interface{}) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", value)
}

// Package middleware holds the HTTP middleware shared by the demo host and the
// debug toolbar.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type (
	requestIDKey struct{}
	scopeIDKey   struct{}
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// RequestID returns an HTTP middleware that assigns a request ID to each
// request. A well-formed incoming X-Request-ID header is reused; anything else
// is replaced by a new UUID so that ids are safe to log. The ID is set on the
// response header and stored in the request context.
//
// Clients may send the same header on concurrent requests, so the request ID
// is only a label. Every request additionally gets a server-generated scope
// ID that is never taken from the client.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := WithScopeID(WithRequestID(r.Context(), id), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithScopeID returns a copy of ctx carrying the request's scope id.
func WithScopeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scopeIDKey{}, id)
}

// ScopeIDFromContext returns the server-generated id of the request, or ""
// outside RequestID. It keys the SQL recording scope.
func ScopeIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(scopeIDKey{}).(string)
	return id
}

package ui

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const (
	csrfCookieName = "sqlpanel_csrf"
	csrfFormField  = "csrf_token"
	csrfHeader     = "X-CSRF-Token"
	csrfTokenBytes = 32
)

type csrfContextKey struct{}

// CSRF protects the demo's forms with a double-submit cookie: the token lives
// in a cookie and must be echoed back in the form or the X-CSRF-Token header.
type CSRF struct {
	Secure bool // set the cookie's Secure flag
}

// Ensure issues a token cookie when the request has none and makes the token
// available to CSRFField.
func (c CSRF) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieToken(r)
		if token == "" {
			token = newCSRFToken()
			http.SetCookie(w, c.cookie(token))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, token)))
	})
}

// Require rejects state-changing requests whose submitted token does not
// match the cookie.
func (c CSRF) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		want := cookieToken(r)
		if want == "" {
			rejectCSRF(w, "Missing CSRF token cookie.")
			return
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(submittedToken(r))) != 1 {
			rejectCSRF(w, "Invalid or missing CSRF token.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c CSRF) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFField renders the hidden input carrying the request's token.
func CSRFField(r *http.Request) gomponents.Node {
	token, ok := r.Context().Value(csrfContextKey{}).(string)
	if !ok || token == "" {
		token = cookieToken(r)
	}
	return html.Input(html.Type("hidden"), html.Name(csrfFormField), html.Value(token))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func submittedToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(csrfHeader)); v != "" {
		return v
	}
	_ = r.ParseForm()
	return strings.TrimSpace(r.PostForm.Get(csrfFormField))
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func rejectCSRF(w http.ResponseWriter, message string) {
	Render(w, http.StatusForbidden, ErrorPage("CSRF Validation Failed", message))
}

func newCSRFToken() string {
	b := make([]byte, csrfTokenBytes)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

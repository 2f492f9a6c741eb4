package sqlpanel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlpanel/internal/callsite"
	"sqlpanel/internal/db"
	"sqlpanel/internal/db/repository"
	"sqlpanel/internal/middleware"
	"sqlpanel/internal/signer"
	"sqlpanel/internal/toolbar"
)

type harness struct {
	tb     *toolbar.Toolbar
	d      *Debugger
	router chi.Router
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	tb := toolbar.New(nil)
	opts := Options{
		DriverName:          db.DriverSQLite,
		DSN:                 filepath.Join(t.TempDir(), "panel.sqlite"),
		SecretKey:           "test-secret",
		ReplaceBuiltinPanel: true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	d, err := Configure(tb, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	require.NoError(t, db.RunMigrations(ctx, d.DB(), db.DriverSQLite))
	require.NoError(t, repository.NewUserRepo(d.DB()).Seed(ctx))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(tb.Middleware)
	r.Mount(tb.MountPath(), tb.Handler())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		var name string
		if err := d.DB().QueryRowContext(r.Context(), "SELECT name FROM users WHERE id = ?", 1).Scan(&name); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := d.DB().ExecContext(r.Context(), "UPDATE users SET visit_count = visit_count + 1 WHERE id = ?", 1); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", name)
	})
	r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
		var n int
		_ = d.DB().QueryRowContext(r.Context(), "SELECT COUNT(*) FROM users").Scan(&n)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"users":%d}`, n)
	})
	r.Get("/quiet", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>quiet</body></html>")
	})

	return &harness{tb: tb, d: d, router: r}
}

func (h *harness) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) viewURL(path, token, duration string) string {
	q := url.Values{}
	q.Set("query", token)
	q.Set("duration", duration)
	return h.tb.ViewsPath() + path + "?" + q.Encode()
}

func TestConfigure_ReplacesBuiltinPanelInPlace(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, []string{
		toolbar.RequestVarsPanelID,
		toolbar.HeadersPanelID,
		toolbar.TimerPanelID,
		PanelID,
	}, h.tb.Panels())
}

func TestConfigure_WithoutReplace(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ReplaceBuiltinPanel = false })
	assert.Equal(t, toolbar.DefaultPanels, h.tb.Panels())

	h.tb.Enable(PanelID)
	rr := h.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rr.Body.String(), "SQL connection pool")
	assert.Contains(t, rr.Body.String(), "SQL queries")
}

func TestConfigure_Errors(t *testing.T) {
	_, err := Configure(nil, Options{})
	require.Error(t, err)

	_, err = Configure(toolbar.New(nil), Options{DriverName: db.DriverSQLite, DSN: ":memory:"})
	require.Error(t, err, "empty secret")

	_, err = Configure(toolbar.New(nil), Options{DriverName: "nope", DSN: "x", SecretKey: "s"})
	require.Error(t, err)
}

func TestConfigure_MergesInternalPackages(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.InternalPackages = []string{"example.com/orm", "runtime"} })
	excluded := h.d.Resolver().Excluded()
	assert.Contains(t, excluded, "example.com/orm")
	assert.Contains(t, excluded, "database/sql")
	assert.Len(t, excluded, len(callsite.DefaultExcluded)+1, "duplicates are dropped")
}

func TestPanel_RendersRecordedQueries(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "<p>Ada Lovelace</p>")
	assert.Contains(t, body, "2 queries")
	assert.Contains(t, body, "/_debug_toolbar/views/sqla/sql_select?")
	assert.Contains(t, body, "/_debug_toolbar/views/sqla/sql_explain?")
	assert.Equal(t, 1, strings.Count(body, "not re-executable"))
	assert.Contains(t, body, "sqlpanel_test.go:")
	assert.Equal(t, 0, h.d.Registry().Len(), "scope is consumed")
}

func TestPanel_NoQueries(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(t, http.MethodGet, "/quiet", nil)
	body := rr.Body.String()
	assert.Contains(t, body, "0 queries")
	assert.NotContains(t, body, `id="tb-panel-sqlpanel.sql"`)
}

func TestPanel_NonHTMLResponseDropsScope(t *testing.T) {
	h := newHarness(t, nil)

	rr := h.do(t, http.MethodGet, "/api", nil)
	assert.JSONEq(t, `{"users":4}`, rr.Body.String())
	assert.Equal(t, 0, h.d.Registry().Len())
}

// serveAsync runs the request in its own goroutine and returns the recorder
// once it completes.
func (h *harness) serveAsync(req *http.Request) <-chan *httptest.ResponseRecorder {
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rr := httptest.NewRecorder()
		h.router.ServeHTTP(rr, req)
		done <- rr
	}()
	return done
}

func TestPanel_ConcurrentRequestsWithSameRequestIDAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	recorded := make(chan struct{})
	release := make(chan struct{})
	h.router.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		var v string
		if err := h.d.DB().QueryRowContext(r.Context(), "SELECT 'secret-of-A'").Scan(&v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		close(recorded)
		<-release
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>slow</body></html>")
	})

	reqA := httptest.NewRequest(http.MethodGet, "/slow", nil)
	reqA.Header.Set(middleware.RequestIDHeader, "shared")
	doneA := h.serveAsync(reqA)
	<-recorded

	for _, target := range []string{"/quiet", "/"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set(middleware.RequestIDHeader, "shared")
		rr := httptest.NewRecorder()
		h.router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, target)
		assert.Equal(t, "shared", rr.Header().Get(middleware.RequestIDHeader), target)
		assert.NotContains(t, rr.Body.String(), "secret-of-A", target)
	}
	assert.Equal(t, 1, h.d.Registry().Len(), "the slow request keeps its own scope")

	close(release)
	rrA := <-doneA
	require.Equal(t, http.StatusOK, rrA.Code)
	bodyA := rrA.Body.String()
	assert.Contains(t, bodyA, "secret-of-A")
	assert.Contains(t, bodyA, "1 query")
	assert.NotContains(t, bodyA, "Ada Lovelace")
	assert.Equal(t, 0, h.d.Registry().Len())
}

func TestPanel_ParallelRequestsSeeOnlyTheirQueries(t *testing.T) {
	h := newHarness(t, nil)
	h.router.Get("/echo/{n}", func(w http.ResponseWriter, r *http.Request) {
		n := chi.URLParam(r, "n")
		var v string
		if err := h.d.DB().QueryRowContext(r.Context(), "SELECT ?", "marker-"+n).Scan(&v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<html><body>"+v+"</body></html>")
	})

	const workers = 8
	results := make([]<-chan *httptest.ResponseRecorder, workers)
	for i := range workers {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/echo/%d", i), nil)
		req.Header.Set(middleware.RequestIDHeader, "shared")
		results[i] = h.serveAsync(req)
	}
	for i, done := range results {
		rr := <-done
		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, "1 query", "request %d", i)
		for j := range workers {
			if j != i {
				assert.NotContains(t, body, fmt.Sprintf("marker-%d", j), "request %d", i)
			}
		}
	}
	assert.Equal(t, 0, h.d.Registry().Len())
}

func TestSelectView(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT id, name FROM users WHERE id = ?", []any{int64(2)})
	require.True(t, ok)

	rr := h.do(t, http.MethodGet, h.viewURL("/sqla/sql_select", token, "0.0042"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, "<title>SQL Select</title>")
	assert.Contains(t, body, "<td>Grace Hopper</td>")
	assert.Contains(t, body, "4.20 ms")
	assert.Contains(t, body, `<span class="tok-num">2</span>`)
	assert.Equal(t, 0, h.d.Registry().Len(), "re-execution is not recorded")
}

func TestSelectView_Post(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT COUNT(*) AS n FROM orders", nil)
	require.True(t, ok)

	form := url.Values{"query": {token}, "duration": {"0.001"}}
	rr := h.do(t, http.MethodPost, h.tb.ViewsPath()+"/sqla/sql_select", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<td>6</td>")
}

func TestExplainView(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT * FROM orders WHERE user_id = ?", []any{int64(1)})
	require.True(t, ok)

	rr := h.do(t, http.MethodGet, h.viewURL("/sqla/sql_explain", token, "0.001"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, "<title>SQL Explain</title>")
	assert.Contains(t, body, "QUERY")
	assert.Contains(t, body, "PLAN")
	assert.Contains(t, body, "<th>detail</th>")
}

func TestViews_RejectInvalidTokens(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT 1", nil)
	require.True(t, ok)

	other, err := signer.New("another-secret", signer.DefaultSalt)
	require.NoError(t, err)
	foreign, ok := other.Sign("SELECT 1", nil)
	require.True(t, ok)

	for name, tok := range map[string]string{
		"empty":    "",
		"garbage":  "not-a-token",
		"tampered": token[:len(token)-2] + "xx",
		"foreign":  foreign,
	} {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/sqla/sql_select", "/sqla/sql_explain"} {
				rr := h.do(t, http.MethodGet, h.viewURL(path, tok, "0.1"), nil)
				assert.Equal(t, http.StatusNotAcceptable, rr.Code, path)
				assert.Contains(t, rr.Body.String(), "Not Acceptable")
			}
		})
	}
}

func TestViews_InvalidDuration(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT 1", nil)
	require.True(t, ok)

	for _, duration := range []string{"", "abc", "-1", "NaN"} {
		rr := h.do(t, http.MethodGet, h.viewURL("/sqla/sql_select", token, duration), nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, duration)
	}
}

func TestViews_ExecutionErrorIs500(t *testing.T) {
	h := newHarness(t, nil)
	token, ok := h.d.signer.Sign("SELECT * FROM no_such_table", nil)
	require.True(t, ok)

	rr := h.do(t, http.MethodGet, h.viewURL("/sqla/sql_select", token, "0.1"), nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "no_such_table")
}

func TestViews_RateLimited(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.RerunLimit = middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})
	token, ok := h.d.signer.Sign("SELECT 1", nil)
	require.True(t, ok)

	target := h.viewURL("/sqla/sql_select", token, "0.1")
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, target, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodGet, target, nil).Code)
}

func TestParseDuration(t *testing.T) {
	v, err := parseDuration("0.25")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, v, 1e-12)

	_, err = parseDuration("+Inf")
	require.Error(t, err)
}

package toolbar

import (
	"context"
	"database/sql"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	gomponents "maragu.dev/gomponents"

	"sqlpanel/internal/ui"
)

type requestVarsPanel struct {
	rows []ui.KeyValue
}

func newRequestVarsPanel(r *http.Request) Panel {
	rows := []ui.KeyValue{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
		{Key: "remote_addr", Value: r.RemoteAddr},
	}
	query := r.URL.Query()
	for _, key := range sortedKeys(query) {
		rows = append(rows, ui.KeyValue{Key: "query." + key, Value: strings.Join(query[key], ", ")})
	}
	for _, c := range r.Cookies() {
		rows = append(rows, ui.KeyValue{Key: "cookie." + c.Name, Value: c.Value})
	}
	return &requestVarsPanel{rows: rows}
}

func (p *requestVarsPanel) NavTitle() string    { return "Request Vars" }
func (p *requestVarsPanel) NavSubtitle() string { return "" }
func (p *requestVarsPanel) Title() string       { return "Request Vars" }
func (p *requestVarsPanel) URL() string         { return "" }
func (p *requestVarsPanel) HasContent() bool    { return true }

func (p *requestVarsPanel) Content(context.Context) (gomponents.Node, error) {
	return ui.KeyValueTable("Variable", "Value", p.rows), nil
}

type headersPanel struct {
	rows []ui.KeyValue
}

func newHeadersPanel(r *http.Request) Panel {
	rows := make([]ui.KeyValue, 0, len(r.Header))
	for _, key := range sortedKeys(r.Header) {
		rows = append(rows, ui.KeyValue{Key: key, Value: strings.Join(r.Header[key], ", ")})
	}
	return &headersPanel{rows: rows}
}

func (p *headersPanel) NavTitle() string    { return "HTTP Headers" }
func (p *headersPanel) NavSubtitle() string { return "" }
func (p *headersPanel) Title() string       { return "HTTP Headers" }
func (p *headersPanel) URL() string         { return "" }
func (p *headersPanel) HasContent() bool    { return true }

func (p *headersPanel) Content(context.Context) (gomponents.Node, error) {
	return ui.KeyValueTable("Header", "Value", p.rows), nil
}

// timerPanel measures the handler from ProcessRequest to ProcessResponse.
type timerPanel struct {
	now     func() time.Time
	start   time.Time
	elapsed time.Duration
	status  int
}

func newTimerPanel(*http.Request) Panel {
	return &timerPanel{now: time.Now}
}

func (p *timerPanel) ProcessRequest(*http.Request) { p.start = p.now() }

func (p *timerPanel) ProcessResponse(_ *http.Request, status int, _ http.Header) {
	p.elapsed = p.now().Sub(p.start)
	p.status = status
}

func (p *timerPanel) NavTitle() string { return "Time" }

func (p *timerPanel) NavSubtitle() string {
	return strconv.FormatFloat(p.elapsed.Seconds()*1000, 'f', 2, 64) + " ms"
}

func (p *timerPanel) Title() string    { return "Request timer" }
func (p *timerPanel) URL() string      { return "" }
func (p *timerPanel) HasContent() bool { return true }

func (p *timerPanel) Content(context.Context) (gomponents.Node, error) {
	return ui.KeyValueTable("Measure", "Value", []ui.KeyValue{
		{Key: "started", Value: p.start.Format(time.RFC3339Nano)},
		{Key: "elapsed", Value: p.NavSubtitle()},
		{Key: "status", Value: strconv.Itoa(p.status)},
	}), nil
}

// poolPanel is the built-in SQL entry. It only knows the connection pool;
// query recording is provided by a replacement panel.
type poolPanel struct {
	stats func() sql.DBStats
}

func (p *poolPanel) NavTitle() string { return "SQL" }

func (p *poolPanel) NavSubtitle() string {
	if p.stats == nil {
		return "no database"
	}
	return strconv.Itoa(p.stats().OpenConnections) + " open"
}

func (p *poolPanel) Title() string    { return "SQL connection pool" }
func (p *poolPanel) URL() string      { return "" }
func (p *poolPanel) HasContent() bool { return p.stats != nil }

func (p *poolPanel) Content(context.Context) (gomponents.Node, error) {
	s := p.stats()
	return ui.KeyValueTable("Statistic", "Value", []ui.KeyValue{
		{Key: "max_open_connections", Value: strconv.Itoa(s.MaxOpenConnections)},
		{Key: "open_connections", Value: strconv.Itoa(s.OpenConnections)},
		{Key: "in_use", Value: strconv.Itoa(s.InUse)},
		{Key: "idle", Value: strconv.Itoa(s.Idle)},
		{Key: "wait_count", Value: strconv.FormatInt(s.WaitCount, 10)},
		{Key: "wait_duration", Value: s.WaitDuration.String()},
		{Key: "max_idle_closed", Value: strconv.FormatInt(s.MaxIdleClosed, 10)},
		{Key: "max_lifetime_closed", Value: strconv.FormatInt(s.MaxLifetimeClosed, 10)},
	}), nil
}

func sortedKeys[M ~map[string][]string](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

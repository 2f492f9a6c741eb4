package sqlpanel

import (
	"math"
	"net/http"
	"strconv"

	"sqlpanel/internal/domain"
	"sqlpanel/internal/engine"
	"sqlpanel/internal/sqlfmt"
	"sqlpanel/internal/ui"
)

// view serves the SELECT or EXPLAIN re-execution of a signed query. Both GET
// and POST carry "query" (the signed token) and "duration" (seconds of the
// original execution).
func (d *Debugger) view(explain bool) http.Handler {
	title := "SQL Select"
	if explain {
		title = "SQL Explain"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statement, params, err := d.signer.Verify(r.FormValue("query"))
		if err != nil {
			d.logger.Warn("rejected signed query", "view", title, "error", err)
			ui.RenderError(w, domain.ErrNotAcceptable(err, "the query token is not valid"))
			return
		}

		duration, err := parseDuration(r.FormValue("duration"))
		if err != nil {
			ui.RenderError(w, err)
			return
		}

		var result *engine.Result
		if explain {
			result, err = d.engine.Explain(r.Context(), statement, params)
		} else {
			result, err = d.engine.Select(r.Context(), statement, params)
		}
		if err != nil {
			d.logger.Error("re-execute query", "view", title, "error", err)
			ui.RenderError(w, err)
			return
		}

		shown := sqlfmt.Format(statement, params)
		if explain {
			shown = engine.ExplainStatement(d.driver, shown)
		}
		ui.Render(w, http.StatusOK, ui.SQLResultPage(d.base, ui.SQLResultView{
			Title:    title,
			SQL:      shown,
			Duration: duration,
			Result:   result,
		}))
	})
}

func parseDuration(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.ErrValidation("duration must be a non-negative number of seconds, got %q", raw)
	}
	return v, nil
}

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sqlpanel/internal/domain"
	"sqlpanel/internal/ui"
)

func (a *App) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ui.Render(w, http.StatusOK, ui.UsersPage(users))
}

func (a *App) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var minCents int64
	if v := r.URL.Query().Get("min"); v != "" {
		minCents, err = strconv.ParseInt(v, 10, 64)
		if err != nil || minCents < 0 {
			a.fail(w, r, domain.ErrValidation("min must be a non-negative number of cents"))
			return
		}
	}

	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	orders, err := a.users.Orders(r.Context(), id, minCents)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ui.Render(w, http.StatusOK, ui.UserPage(r, user, orders, minCents))
}

func (a *App) recordVisit(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.users.RecordVisit(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/users/%d", id), http.StatusSeeOther)
}

type userJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	VisitCount int64  `json:"visit_count"`
	OrderCount int64  `json:"order_count"`
	TotalCents int64  `json:"total_cents"`
}

func (a *App) apiUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		status, _ := ui.ErrorStatus(err)
		a.logger.Error("list users", "error", err)
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON{
			ID: u.ID, Name: u.Name, Email: u.Email, VisitCount: u.VisitCount,
			OrderCount: u.OrderCount, TotalCents: u.TotalCents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx := domain.WithoutRecording(r.Context())
	if err := a.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := ui.ErrorStatus(err); status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	ui.RenderError(w, err)
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrValidation("invalid user id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sqlpanel/internal/middleware"
	"sqlpanel/internal/ui"
	"sqlpanel/internal/ui/assets"
)

// Handler builds the HTTP router.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(a.logger))
	r.Use(chimw.Recoverer)
	if a.toolbar != nil {
		r.Use(a.toolbar.Middleware)
		r.Mount(a.toolbar.MountPath(), a.toolbar.Handler())
	}

	r.Handle(ui.AppStaticPath+"*", assets.FileServer(ui.AppStaticPath))

	r.Get("/healthz", a.health)
	r.Get("/api/users", a.apiUsers)

	csrf := ui.CSRF{Secure: a.cfg.IsProduction()}
	r.Group(func(r chi.Router) {
		r.Use(csrf.Ensure)
		r.Use(csrf.Require)
		r.Get("/", a.listUsers)
		r.Get("/users/{id}", a.showUser)
		r.Post("/users/{id}/visits", a.recordVisit)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		ui.Render(w, http.StatusNotFound, ui.ErrorPage("Not Found", "There is nothing at this address."))
	})
	return r
}

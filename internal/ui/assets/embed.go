// Package assets embeds the stylesheets served by the toolbar and the demo.
package assets

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var files embed.FS

// Stylesheets is the embedded static directory with the "static/" prefix
// removed, so "toolbar.css" resolves directly.
func Stylesheets() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic("assets: embedded static directory missing: " + err.Error())
	}
	return sub
}

// FileServer serves Stylesheets below prefix.
func FileServer(prefix string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.FS(Stylesheets())))
}

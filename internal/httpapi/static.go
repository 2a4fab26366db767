package httpapi

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var dashboardFS embed.FS

// newStaticHandler serves the embedded dashboard. Responses are not cached
// so a redeploy shows up on reload.
func newStaticHandler() http.Handler {
	sub, err := fs.Sub(dashboardFS, "static")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}

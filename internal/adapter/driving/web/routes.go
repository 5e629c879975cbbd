package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Web routes serve HTML at / and accept form posts at /app/*.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Dashboard)

	// Form posts.
	mux.HandleFunc("POST /app/vault", h.post("vault", h.Vault))
	mux.HandleFunc("POST /app/scenes/add", h.post("add scene", h.AddScene))
	mux.HandleFunc("POST /app/scenes/upload", h.post("upload scenes", h.UploadScenes))
	mux.HandleFunc("POST /app/scenes/clear", h.post("clear scenes", h.ClearScenes))
	mux.HandleFunc("POST /app/scenes/{id}/remove", h.post("remove scene", h.RemoveScene))
	mux.HandleFunc("POST /app/scenes/{id}/select", h.post("select scene", h.SelectScene))
	mux.HandleFunc("POST /app/preferences", h.post("preferences", h.Preferences))
	mux.HandleFunc("POST /app/generate", h.post("generate", h.Generate))
	mux.HandleFunc("POST /app/results/clear", h.post("clear results", h.ClearResults))
	mux.HandleFunc("POST /app/backend", h.post("backend", h.Backend))
	mux.HandleFunc("POST /app/export", h.post("export", h.Export))
	mux.HandleFunc("POST /app/export/token", h.post("export token", h.SetExportToken))
	mux.HandleFunc("POST /app/export/token/clear", h.post("clear export token", h.ClearExportToken))
	mux.HandleFunc("POST /app/status/dismiss", h.post("dismiss status", h.DismissStatus))
}

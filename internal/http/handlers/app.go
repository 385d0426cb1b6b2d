package handlers

import (
	"encoding/json"
	"net/http"

	"brandguard/internal/domain"
	"brandguard/internal/infra"
	"brandguard/internal/storage"
)

// App bundles the handler dependencies injected at startup.
type App struct {
	Jobs   domain.JobRepository
	Brands domain.BrandRepository
	Assets domain.AssetRepository
	Store  *storage.FileStore
	Config *infra.Config
	Logger infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"assetgen/internal/infra"
	"assetgen/internal/journal"
	"assetgen/internal/manifest"
)

// ManifestSource loads the current manifest document.
type ManifestSource interface {
	Load(ctx context.Context) (*manifest.Manifest, error)
}

// RunJournal lists the recorded steps of a generation run.
type RunJournal interface {
	ListRun(ctx context.Context, runID string) ([]journal.Step, error)
}

// App serves the read-only manifest view. Journal may be nil when no
// database is configured.
type App struct {
	Manifests ManifestSource
	Journal   RunJournal
	Logger    *infra.Logger

	cache    *cache.Cache
	cacheTTL time.Duration
}

func NewApp(manifests ManifestSource, runs RunJournal, cacheTTL time.Duration, logger *infra.Logger) *App {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &App{
		Manifests: manifests,
		Journal:   runs,
		Logger:    infra.OrDiscard(logger),
		cache:     cache.New(cacheTTL, 2*cacheTTL),
		cacheTTL:  cacheTTL,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

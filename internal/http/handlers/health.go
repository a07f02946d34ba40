package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.json(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "manifest": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"generated_at": snap.doc.GeneratedAt,
		"locations":    len(snap.doc.Locations()),
		"journal":      a.Journal != nil,
	})
}

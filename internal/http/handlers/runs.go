package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetgen/internal/domain"
)

func (a *App) RunTasks(w http.ResponseWriter, r *http.Request) {
	if a.Journal == nil {
		a.error(w, http.StatusNotImplemented, "journal not configured")
		return
	}
	runID := chi.URLParam(r, "id")
	steps, err := a.Journal.ListRun(r.Context(), runID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("run_id", runID).Msg("manifestd: list run failed")
		a.error(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	if len(steps) == 0 {
		a.error(w, http.StatusNotFound, "run not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"run_id": runID, "items": steps})
}

package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"assetgen/internal/manifest"
)

const manifestCacheKey = "manifest"

type manifestSnapshot struct {
	doc  *manifest.Manifest
	body []byte
	etag string
}

// snapshot returns the decoded manifest, reloading it from disk at most once
// per cache TTL.
func (a *App) snapshot(ctx context.Context) (*manifestSnapshot, error) {
	if v, ok := a.cache.Get(manifestCacheKey); ok {
		return v.(*manifestSnapshot), nil
	}
	doc, err := a.Manifests.Load(ctx)
	if err != nil {
		return nil, err
	}
	body, err := manifest.Encode(doc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	snap := &manifestSnapshot{doc: doc, body: body, etag: `"` + hex.EncodeToString(sum[:8]) + `"`}
	a.cache.SetDefault(manifestCacheKey, snap)
	return snap, nil
}

// InvalidateManifest drops the cached document.
func (a *App) InvalidateManifest() {
	a.cache.Delete(manifestCacheKey)
}

func (a *App) Manifest(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("manifestd: load manifest failed")
		a.error(w, http.StatusServiceUnavailable, "manifest unavailable")
		return
	}
	w.Header().Set("ETag", snap.etag)
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(a.cacheTTL.Seconds())))
	if match := r.Header.Get("If-None-Match"); match != "" && match == snap.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.body)
}

func (a *App) Hero(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "manifest unavailable")
		return
	}
	name := chi.URLParam(r, "name")
	hero, ok := snap.doc.Hero(name)
	if !ok {
		a.error(w, http.StatusNotFound, "hero not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"name": name, "image": hero.Image, "video": hero.Video})
}

func (a *App) PortfolioItem(w http.ResponseWriter, r *http.Request) {
	snap, err := a.snapshot(r.Context())
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "manifest unavailable")
		return
	}
	item, ok := snap.doc.PortfolioItem(chi.URLParam(r, "id"))
	if !ok {
		a.error(w, http.StatusNotFound, "portfolio item not found")
		return
	}
	a.json(w, http.StatusOK, item)
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"assetgen/internal/domain"
	"assetgen/internal/http/handlers"
	"assetgen/internal/journal"
	"assetgen/internal/manifest"
)

type countingSource struct {
	doc   *manifest.Manifest
	err   error
	loads int
}

func (s *countingSource) Load(ctx context.Context) (*manifest.Manifest, error) {
	s.loads++
	return s.doc, s.err
}

type stubJournal struct {
	steps []journal.Step
	err   error
}

func (j *stubJournal) ListRun(ctx context.Context, runID string) ([]journal.Step, error) {
	return j.steps, j.err
}

func newTestRouter(src *countingSource, runs handlers.RunJournal) http.Handler {
	app := handlers.NewApp(src, runs, time.Minute, nil)
	return NewRouter(app, RouterOptions{
		CORSOrigins:     []string{"https://site.example"},
		RateLimitPerMin: 1000,
		Logger:          zerolog.Nop(),
	})
}

func sampleManifest() *manifest.Manifest {
	m := manifest.Default()
	_ = m.SetHeroImage("luxusMinimalist", "/assets/heroes/luxus-minimalist.jpg")
	_ = m.SetHeroVideo("luxusMinimalist", "/assets/heroes/luxus-minimalist.mp4")
	_ = m.PutPortfolioItem(manifest.PortfolioItem{ID: "villa-hietzing", Title: "Villa Hietzing", Location: "1130 Wien", Image: "/assets/portfolio/villa-hietzing.jpg"})
	return m
}

func do(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestManifestEndpointCachesAndSupportsETag(t *testing.T) {
	src := &countingSource{doc: sampleManifest()}
	h := newTestRouter(src, nil)

	rr := do(t, h, "/v1/manifest", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var doc manifest.Manifest
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Heroes["luxusMinimalist"].Video != "/assets/heroes/luxus-minimalist.mp4" {
		t.Fatalf("heroes = %+v", doc.Heroes)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	rr = do(t, h, "/v1/manifest", map[string]string{"If-None-Match": etag})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rr.Code)
	}
	if src.loads != 1 {
		t.Fatalf("loads = %d, want 1 (cached)", src.loads)
	}
}

func TestHeroAndPortfolioEndpoints(t *testing.T) {
	h := newTestRouter(&countingSource{doc: sampleManifest()}, nil)

	rr := do(t, h, "/v1/manifest/heroes/luxusMinimalist", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("hero status = %d", rr.Code)
	}
	var hero map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&hero)
	if hero["image"] != "/assets/heroes/luxus-minimalist.jpg" {
		t.Fatalf("hero = %v", hero)
	}

	if rr := do(t, h, "/v1/manifest/heroes/unknown", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown hero status = %d, want 404", rr.Code)
	}

	rr = do(t, h, "/v1/manifest/portfolio/villa-hietzing", nil)
	var item manifest.PortfolioItem
	_ = json.NewDecoder(rr.Body).Decode(&item)
	if rr.Code != http.StatusOK || item.Location != "1130 Wien" {
		t.Fatalf("portfolio = %d %+v", rr.Code, item)
	}
}

func TestDocsLinkServedEntries(t *testing.T) {
	h := newTestRouter(&countingSource{doc: sampleManifest()}, nil)

	rr := do(t, h, "/v1/docs", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`href="/v1/manifest/heroes/luxusMinimalist"`, `href="/v1/manifest/portfolio/villa-hietzing"`, `spec-url="/v1/openapi.json"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("docs page missing %s", want)
		}
	}

	rr = do(t, newTestRouter(&countingSource{err: errors.New("disk gone")}, nil), "/v1/docs", nil)
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "/v1/manifest/heroes/") {
		t.Fatalf("docs without manifest: status = %d", rr.Code)
	}
}

func TestManifestUnavailable(t *testing.T) {
	src := &countingSource{err: &domain.ManifestIOError{Op: "decode", Path: "m.json", Err: errors.New("bad json")}}
	h := newTestRouter(src, nil)

	if rr := do(t, h, "/v1/manifest", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if rr := do(t, h, "/v1/healthz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", rr.Code)
	}
}

func TestHealthOK(t *testing.T) {
	h := newTestRouter(&countingSource{doc: sampleManifest()}, nil)
	rr := do(t, h, "/v1/healthz", nil)
	var body map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["locations"] != float64(3) {
		t.Fatalf("health = %d %v", rr.Code, body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestRunTasks(t *testing.T) {
	src := &countingSource{doc: sampleManifest()}

	if rr := do(t, newTestRouter(src, nil), "/v1/runs/abc/tasks", nil); rr.Code != http.StatusNotImplemented {
		t.Fatalf("no journal status = %d, want 501", rr.Code)
	}

	runs := &stubJournal{steps: []journal.Step{{Asset: "luxusMinimalist", Stage: "image", Outcome: "generated", TaskID: "T1"}}}
	rr := do(t, newTestRouter(src, runs), "/v1/runs/2d3c8f4e-5a51-4a1a-9d7b-3f7d2e6f9a10/tasks", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Items []journal.Step `json:"items"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Items) != 1 || body.Items[0].TaskID != "T1" {
		t.Fatalf("items = %+v", body.Items)
	}

	missing := &stubJournal{err: domain.ErrNotFound}
	if rr := do(t, newTestRouter(src, missing), "/v1/runs/nope/tasks", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing run status = %d, want 404", rr.Code)
	}
}

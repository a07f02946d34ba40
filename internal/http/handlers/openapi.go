package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"sort"
)

//go:embed openapi.json
var openAPISpec []byte

// The docs page links straight to the documents currently being served, so a
// site developer can jump from the reference to live data.
var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <title>Asset Manifest API</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>
      body { margin: 0; font-family: sans-serif; }
      nav { padding: 12px 16px; border-bottom: 1px solid #ddd; font-size: 14px; }
      nav a { margin-right: 12px; }
      redoc { display: block; height: calc(100vh - 48px); }
    </style>
  </head>
  <body>
    <nav>
      <a href="/v1/manifest">manifest</a>
      {{- range .Heroes}}
      <a href="/v1/manifest/heroes/{{.}}">hero {{.}}</a>
      {{- end}}
      {{- range .Portfolio}}
      <a href="/v1/manifest/portfolio/{{.}}">{{.}}</a>
      {{- end}}
    </nav>
    <redoc spec-url="/v1/openapi.json"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

type docsLinks struct {
	Heroes    []string
	Portfolio []string
}

func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

// OpenAPIDocs renders the reference page. An unreadable manifest only drops
// the entry links.
func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	var links docsLinks
	if snap, err := a.snapshot(r.Context()); err == nil {
		for name := range snap.doc.Heroes {
			links.Heroes = append(links.Heroes, name)
		}
		sort.Strings(links.Heroes)
		for _, item := range snap.doc.Portfolio {
			links.Portfolio = append(links.Portfolio, item.ID)
		}
	}

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, links); err != nil {
		a.Logger.Error().Err(err).Msg("manifestd: render docs failed")
		a.error(w, http.StatusInternalServerError, "docs unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

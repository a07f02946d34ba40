// Package localize copies generated assets out of the remote service's
// short-lived storage into the site's asset directory and points the
// manifest at the local copies.
package localize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
	"assetgen/internal/infra"
	"assetgen/internal/manifest"
	"assetgen/internal/storage"
	"assetgen/pkg/zip"
)

const (
	defaultConcurrency = 4
	defaultMaxBytes    = 512 << 20
	defaultPublicBase  = "/assets"
)

// ErrTooLarge is returned when a download exceeds the configured size cap.
var ErrTooLarge = errors.New("localize: asset exceeds size limit")

// ErrKeyCollision is returned by Plan when two locations would be stored
// under the same key.
var ErrKeyCollision = errors.New("localize: storage key collision")

// Options configures a Localizer.
type Options struct {
	HTTPClient  *http.Client
	Concurrency int
	PublicBase  string
	MaxBytes    int64
	Logger      *infra.Logger
}

// Download is one manifest location and where it lands locally.
type Download struct {
	Location manifest.Location
	Key      string
	Source   string
	Public   string
	Bytes    int64
	Skipped  bool
}

// Report summarises a Localize call.
type Report struct {
	Downloads []Download
	Bytes     int64
	Elapsed   time.Duration
}

// Localizer downloads manifest locations into a FileStore.
type Localizer struct {
	files       *storage.FileStore
	client      *http.Client
	concurrency int
	publicBase  string
	maxBytes    int64
	logger      *infra.Logger
}

func New(files *storage.FileStore, opts Options) *Localizer {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if strings.TrimSpace(opts.PublicBase) == "" {
		opts.PublicBase = defaultPublicBase
	}
	return &Localizer{
		files:       files,
		client:      opts.HTTPClient,
		concurrency: opts.Concurrency,
		publicBase:  strings.TrimRight(opts.PublicBase, "/"),
		maxBytes:    opts.MaxBytes,
		logger:      infra.OrDiscard(opts.Logger),
	}
}

// Plan maps every populated location of m to its local storage key.
// Locations that are not http(s) URLs are treated as already local.
func (l *Localizer) Plan(m *manifest.Manifest) ([]Download, error) {
	locations := m.Locations()
	plan := make([]Download, 0, len(locations))
	owners := make(map[string]manifest.Location, len(locations))
	for _, loc := range locations {
		d := Download{Location: loc, Source: loc.URL}
		if !isRemote(loc.URL) {
			d.Skipped = true
			d.Public = loc.URL
			plan = append(plan, d)
			continue
		}
		key, err := keyFor(loc)
		if err != nil {
			return nil, err
		}
		if prev, dup := owners[key]; dup {
			return nil, fmt.Errorf("%w: %s %s and %s %s both map to %s",
				ErrKeyCollision, prev.Group, prev.Name, loc.Group, loc.Name, key)
		}
		owners[key] = loc
		d.Key = key
		d.Public = l.publicBase + "/" + key
		plan = append(plan, d)
	}
	return plan, nil
}

// Localize downloads every remote location of m and returns a copy of m that
// references the local files. m itself is left untouched, so a failed call
// never produces a manifest pointing at missing files.
func (l *Localizer) Localize(ctx context.Context, m *manifest.Manifest) (*manifest.Manifest, *Report, error) {
	start := time.Now()
	plan, err := l.Plan(m)
	if err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	report := &Report{}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.concurrency)
	for i := range plan {
		d := &plan[i]
		if d.Skipped {
			continue
		}
		eg.Go(func() error {
			n, err := l.fetch(egCtx, d.Source, d.Key)
			if err != nil {
				l.logger.Error().Err(err).Str("asset", d.Location.Name).Str("key", d.Key).Msg("localize: download failed")
				return fmt.Errorf("localize: %s %s: %w", d.Location.Name, d.Location.Kind, err)
			}
			d.Bytes = n
			mu.Lock()
			report.Bytes += n
			mu.Unlock()
			l.logger.Info().Str("asset", d.Location.Name).Str("key", d.Key).Int64("bytes", n).Msg("localize: downloaded")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	out, err := rewrite(m, plan)
	if err != nil {
		return nil, nil, err
	}
	report.Downloads = plan
	report.Elapsed = time.Since(start)
	return out, report, nil
}

// Bundle zips the downloaded files plus the rewritten manifest document.
func (l *Localizer) Bundle(ctx context.Context, report *Report, manifestDoc []byte) ([]byte, error) {
	assets := make([]zip.Asset, 0, len(report.Downloads)+1)
	for _, d := range report.Downloads {
		if d.Skipped {
			continue
		}
		data, err := l.files.Read(ctx, d.Key)
		if err != nil {
			return nil, fmt.Errorf("localize: bundle %s: %w", d.Key, err)
		}
		assets = append(assets, zip.Asset{Filename: d.Key, MIME: mimeFor(d.Key), Data: data, Modified: time.Now()})
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Filename < assets[j].Filename })
	assets = append(assets, zip.Asset{Filename: "manifest.json", MIME: "application/json", Data: manifestDoc, Modified: time.Now()})
	return zip.ArchiveAssets(assets)
}

func (l *Localizer) fetch(ctx context.Context, source, key string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body := &limitedReader{r: resp.Body, remaining: l.maxBytes}
	if _, err := l.files.WriteStreamAtomic(ctx, key, body); err != nil {
		return 0, err
	}
	return body.read, nil
}

func rewrite(m *manifest.Manifest, plan []Download) (*manifest.Manifest, error) {
	out := m.Clone()
	for _, d := range plan {
		loc := d.Location
		switch loc.Group {
		case domain.AssetGroupHero:
			hero := out.Heroes[loc.Name]
			if loc.Kind == domain.TaskKindVideo {
				hero.Video = d.Public
			} else {
				hero.Image = d.Public
			}
			out.Heroes[loc.Name] = hero
		case domain.AssetGroupPortfolio:
			item, _ := out.PortfolioItem(loc.Name)
			item.Image = d.Public
			if err := out.PutPortfolioItem(item); err != nil {
				return nil, err
			}
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// keyFor names the local file of loc: heroes/<kebab>.jpg|.mp4 and
// portfolio/<id><ext of the source URL>.
func keyFor(loc manifest.Location) (string, error) {
	switch loc.Group {
	case domain.AssetGroupHero:
		ext := ".jpg"
		if loc.Kind == domain.TaskKindVideo {
			ext = ".mp4"
		}
		return "heroes/" + jsoncfg.Kebab(loc.Name) + ext, nil
	case domain.AssetGroupPortfolio:
		u, err := url.Parse(loc.URL)
		if err != nil {
			return "", fmt.Errorf("localize: %s: %w", loc.Name, err)
		}
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == "" {
			ext = ".jpg"
		}
		return "portfolio/" + loc.Name + ext, nil
	default:
		return "", fmt.Errorf("localize: unknown group %q", loc.Group)
	}
}

func isRemote(raw string) bool {
	return strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}

func mimeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for one more byte so an exact-size body is not rejected.
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	l.read += int64(n)
	return n, err
}

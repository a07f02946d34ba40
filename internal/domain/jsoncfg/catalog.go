package jsoncfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"assetgen/internal/domain"
)

// HeroJSON describes one hero concept: an image and the video derived from it.
type HeroJSON struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	ImagePrompt string `json:"image_prompt"`
	VideoPrompt string `json:"video_prompt"`
}

// PortfolioJSON describes one single-image portfolio entry.
type PortfolioJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Prompt   string `json:"prompt"`
}

// CatalogJSON is the on-disk form of an asset catalog.
type CatalogJSON struct {
	Version   string          `json:"version"`
	Heroes    []HeroJSON      `json:"heroes"`
	Portfolio []PortfolioJSON `json:"portfolio"`
}

const (
	// DefaultCatalogVersion is applied when a catalog omits its version.
	DefaultCatalogVersion = "2025-01"
)

// ParseCatalog decodes, normalizes and validates a catalog document.
func ParseCatalog(data []byte) (*CatalogJSON, error) {
	var c CatalogJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Normalize trims every field and derives missing identifiers and titles.
func (c *CatalogJSON) Normalize() {
	if c == nil {
		return
	}
	c.Version = strings.TrimSpace(c.Version)
	if c.Version == "" {
		c.Version = DefaultCatalogVersion
	}
	title := cases.Title(language.Und)
	for i := range c.Heroes {
		h := &c.Heroes[i]
		h.Name = strings.TrimSpace(h.Name)
		h.Title = strings.TrimSpace(h.Title)
		h.ImagePrompt = strings.TrimSpace(h.ImagePrompt)
		h.VideoPrompt = strings.TrimSpace(h.VideoPrompt)
		if h.Title == "" && h.Name != "" {
			h.Title = title.String(strings.ReplaceAll(Kebab(h.Name), "-", " "))
		}
	}
	for i := range c.Portfolio {
		p := &c.Portfolio[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Title = strings.TrimSpace(p.Title)
		p.Location = strings.TrimSpace(p.Location)
		p.Prompt = strings.TrimSpace(p.Prompt)
		if p.ID == "" {
			p.ID = Slug(p.Title)
		}
	}
}

// Validate ensures every entry can be turned into an asset definition.
func (c CatalogJSON) Validate() error {
	if len(c.Heroes) == 0 && len(c.Portfolio) == 0 {
		return fmt.Errorf("%w: catalog is empty", domain.ErrInvalidCatalog)
	}
	heroes := make(map[string]struct{}, len(c.Heroes))
	files := make(map[string]string, len(c.Heroes))
	for i, h := range c.Heroes {
		if h.Name == "" {
			return fmt.Errorf("%w: heroes[%d].name is required", domain.ErrInvalidCatalog, i)
		}
		if _, dup := heroes[h.Name]; dup {
			return fmt.Errorf("%w: hero %s is declared twice", domain.ErrInvalidCatalog, h.Name)
		}
		heroes[h.Name] = struct{}{}
		// Hero files are named by the kebab form, so fooBar and foo-bar would share one.
		if other, clash := files[Kebab(h.Name)]; clash {
			return fmt.Errorf("%w: heroes %s and %s map to the same file name %s", domain.ErrInvalidCatalog, other, h.Name, Kebab(h.Name))
		}
		files[Kebab(h.Name)] = h.Name
		if h.ImagePrompt == "" {
			return fmt.Errorf("%w: hero %s image_prompt is required", domain.ErrInvalidCatalog, h.Name)
		}
		if h.VideoPrompt == "" {
			return fmt.Errorf("%w: hero %s video_prompt is required", domain.ErrInvalidCatalog, h.Name)
		}
	}
	items := make(map[string]struct{}, len(c.Portfolio))
	for i, p := range c.Portfolio {
		if p.ID == "" {
			return fmt.Errorf("%w: portfolio[%d] needs an id or a title", domain.ErrInvalidCatalog, i)
		}
		if _, dup := items[p.ID]; dup {
			return fmt.Errorf("%w: portfolio %s is declared twice", domain.ErrInvalidCatalog, p.ID)
		}
		items[p.ID] = struct{}{}
		if p.Prompt == "" {
			return fmt.Errorf("%w: portfolio %s prompt is required", domain.ErrInvalidCatalog, p.ID)
		}
	}
	return nil
}

// Definitions returns the catalog in pipeline order: heroes, then portfolio.
func (c CatalogJSON) Definitions() []domain.AssetDefinition {
	defs := make([]domain.AssetDefinition, 0, len(c.Heroes)+len(c.Portfolio))
	for _, h := range c.Heroes {
		defs = append(defs, domain.AssetDefinition{
			Name:  h.Name,
			Group: domain.AssetGroupHero,
			Title: h.Title,
			Image: domain.StageDefinition{Kind: domain.TaskKindImage, Prompt: h.ImagePrompt},
			Video: &domain.StageDefinition{Kind: domain.TaskKindVideo, Prompt: h.VideoPrompt},
		})
	}
	for _, p := range c.Portfolio {
		defs = append(defs, domain.AssetDefinition{
			Name:     p.ID,
			Group:    domain.AssetGroupPortfolio,
			Title:    p.Title,
			Location: p.Location,
			Image:    domain.StageDefinition{Kind: domain.TaskKindImage, Prompt: p.Prompt},
		})
	}
	return defs
}

// Slug turns a display title into a URL-safe identifier: "Penthouse Döbling"
// becomes "penthouse-doebling".
func Slug(s string) string {
	s = germanFold.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Kebab splits a camelCase name: "luxusMinimalist" becomes "luxus-minimalist".
func Kebab(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return Slug(b.String())
}

var germanFold = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue", "ß", "ss")

// MustMarshal encodes v, panicking on values that cannot be represented.
func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}

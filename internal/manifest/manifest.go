// Package manifest holds the document that maps generated asset names to
// their resource locations, and the store that persists it.
package manifest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"assetgen/internal/domain"
)

// HeroAsset is the image and derived video of one hero concept.
type HeroAsset struct {
	Image string `json:"image"`
	Video string `json:"video"`
}

// PortfolioItem is a single-image portfolio entry.
type PortfolioItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Image    string `json:"image"`
}

// Manifest is the document consumed read-only by the presentation layer.
type Manifest struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Heroes      map[string]HeroAsset `json:"heroes"`
	Portfolio   []PortfolioItem      `json:"portfolio"`
}

// Location is one populated resource location of the manifest.
type Location struct {
	Group domain.AssetGroup
	Name  string
	Kind  domain.TaskKind
	URL   string
}

// Default returns the empty manifest used when nothing has been persisted yet.
func Default() *Manifest {
	return &Manifest{
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Heroes:      map[string]HeroAsset{},
		Portfolio:   []PortfolioItem{},
	}
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := &Manifest{
		GeneratedAt: m.GeneratedAt,
		Heroes:      make(map[string]HeroAsset, len(m.Heroes)),
		Portfolio:   make([]PortfolioItem, len(m.Portfolio)),
	}
	for k, v := range m.Heroes {
		out.Heroes[k] = v
	}
	copy(out.Portfolio, m.Portfolio)
	return out
}

// Hero looks up a hero entry by name.
func (m *Manifest) Hero(name string) (HeroAsset, bool) {
	h, ok := m.Heroes[name]
	return h, ok
}

// PortfolioItem looks up a portfolio entry by id.
func (m *Manifest) PortfolioItem(id string) (PortfolioItem, bool) {
	for _, item := range m.Portfolio {
		if item.ID == id {
			return item, true
		}
	}
	return PortfolioItem{}, false
}

// SetHeroImage records the image of a hero. Setting a new image drops a video
// derived from a previous one.
func (m *Manifest) SetHeroImage(name, url string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("manifest: hero name is required")
	}
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("manifest: hero %s image: %w", name, domain.ErrEmptyLocation)
	}
	if m.Heroes == nil {
		m.Heroes = map[string]HeroAsset{}
	}
	prev := m.Heroes[name]
	next := HeroAsset{Image: url}
	if prev.Image == url {
		next.Video = prev.Video
	}
	m.Heroes[name] = next
	return nil
}

// SetHeroVideo records the video of a hero whose image is already present.
func (m *Manifest) SetHeroVideo(name, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("manifest: hero %s video: %w", name, domain.ErrEmptyLocation)
	}
	hero, ok := m.Heroes[name]
	if !ok || hero.Image == "" {
		return fmt.Errorf("manifest: hero %s video: %w", name, domain.ErrMissingBase)
	}
	hero.Video = url
	m.Heroes[name] = hero
	return nil
}

// PutPortfolioItem inserts the item or replaces the entry with the same id,
// keeping its position.
func (m *Manifest) PutPortfolioItem(item PortfolioItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("manifest: portfolio id is required")
	}
	if strings.TrimSpace(item.Image) == "" {
		return fmt.Errorf("manifest: portfolio %s image: %w", item.ID, domain.ErrEmptyLocation)
	}
	for i := range m.Portfolio {
		if m.Portfolio[i].ID == item.ID {
			m.Portfolio[i] = item
			return nil
		}
	}
	m.Portfolio = append(m.Portfolio, item)
	return nil
}

// Locations lists every populated location. Heroes come first, sorted by
// name, then the portfolio in document order.
func (m *Manifest) Locations() []Location {
	names := make([]string, 0, len(m.Heroes))
	for name := range m.Heroes {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Location
	for _, name := range names {
		hero := m.Heroes[name]
		if hero.Image != "" {
			out = append(out, Location{Group: domain.AssetGroupHero, Name: name, Kind: domain.TaskKindImage, URL: hero.Image})
		}
		if hero.Video != "" {
			out = append(out, Location{Group: domain.AssetGroupHero, Name: name, Kind: domain.TaskKindVideo, URL: hero.Video})
		}
	}
	for _, item := range m.Portfolio {
		if item.Image != "" {
			out = append(out, Location{Group: domain.AssetGroupPortfolio, Name: item.ID, Kind: domain.TaskKindImage, URL: item.Image})
		}
	}
	return out
}

// Validate checks the structural invariants of a loaded or produced manifest:
// no empty portfolio image, no video without its image, no duplicate ids.
func (m *Manifest) Validate() error {
	if m == nil {
		return errors.New("manifest: nil manifest")
	}
	var problems []string
	for name, hero := range m.Heroes {
		if hero.Video != "" && hero.Image == "" {
			problems = append(problems, fmt.Sprintf("hero %s has a video without an image", name))
		}
	}
	seen := make(map[string]struct{}, len(m.Portfolio))
	for i, item := range m.Portfolio {
		if item.ID == "" {
			problems = append(problems, fmt.Sprintf("portfolio[%d] has no id", i))
			continue
		}
		if _, dup := seen[item.ID]; dup {
			problems = append(problems, fmt.Sprintf("portfolio %s is duplicated", item.ID))
		}
		seen[item.ID] = struct{}{}
		if strings.TrimSpace(item.Image) == "" {
			problems = append(problems, fmt.Sprintf("portfolio %s has an empty image", item.ID))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("manifest: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Complete reports whether every location the definitions produce is
// populated, returning the missing ones otherwise.
func (m *Manifest) Complete(defs []domain.AssetDefinition) error {
	var missing []string
	for _, def := range defs {
		switch def.Group {
		case domain.AssetGroupHero:
			hero := m.Heroes[def.Name]
			if hero.Image == "" {
				missing = append(missing, def.Name+".image")
			}
			if def.HasVideo() && hero.Video == "" {
				missing = append(missing, def.Name+".video")
			}
		case domain.AssetGroupPortfolio:
			if item, ok := m.PortfolioItem(def.Name); !ok || item.Image == "" {
				missing = append(missing, "portfolio."+def.Name)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("manifest: %d missing locations: %s", len(missing), strings.Join(missing, ", "))
	}
	return nil
}

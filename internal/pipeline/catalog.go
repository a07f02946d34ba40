package pipeline

import (
	"fmt"
	"os"

	"assetgen/internal/domain"
	"assetgen/internal/domain/jsoncfg"
)

var builtinCatalog = jsoncfg.CatalogJSON{
	Version: jsoncfg.DefaultCatalogVersion,
	Heroes: []jsoncfg.HeroJSON{
		{
			Name:        "luxusMinimalist",
			Title:       "Luxus Minimalist",
			ImagePrompt: "Luxurious Vienna apartment interior, floor-to-ceiling windows, golden hour sunlight streaming through, minimalist elegant furniture, warm cream and gold tones, high-end modern design, sophisticated atmosphere, professional real estate photography, 8K quality, sharp focus",
			VideoPrompt: "Slow pan across luxurious Vienna apartment, golden hour light, elegant minimalist design",
		},
		{
			Name:        "cinematicStorytelling",
			Title:       "Cinematic Storytelling",
			ImagePrompt: "Dramatic twilight penthouse view, moody atmospheric lighting, Vienna cityscape through large windows, cinematic composition, deep shadows and highlights, emotional storytelling atmosphere, premium real estate, 8K quality, film-like aesthetic",
			VideoPrompt: "Cinematic dolly shot through dramatic penthouse, twilight atmosphere, moody lighting",
		},
		{
			Name:        "dataRoiDriven",
			Title:       "Data ROI Driven",
			ImagePrompt: "Modern professional office space with analytics screens, clean contemporary design, blue and green accents, data visualization on displays, Vienna business district view, corporate elegance, high-tech aesthetic, 8K quality, crisp details",
			VideoPrompt: "Smooth tracking shot of modern office, analytics screens, professional atmosphere",
		},
		{
			Name:        "editorialMagazine",
			Title:       "Editorial Magazine",
			ImagePrompt: "Editorial style Viennese Altbau apartment, classic architecture details, ornate ceiling moldings, herringbone parquet floors, natural window light, magazine-worthy composition, timeless elegance, rich textures, 8K quality, editorial photography",
			VideoPrompt: "Graceful camera movement through classic Viennese Altbau, editorial magazine style",
		},
	},
	Portfolio: []jsoncfg.PortfolioJSON{
		{
			ID:       "penthouse-doebling",
			Title:    "Penthouse Döbling",
			Location: "1190 Wien",
			Prompt:   "Luxury penthouse rooftop terrace in Vienna Döbling, panoramic city views, modern outdoor furniture, sunset lighting, premium real estate photography, 8K quality",
		},
		{
			ID:       "altbau-innere-stadt",
			Title:    "Altbau Innere Stadt",
			Location: "1010 Wien",
			Prompt:   "Historic Viennese Altbau living room, high ornate ceilings, classic architecture, elegant period details, warm ambient lighting, professional interior photography, 8K quality",
		},
		{
			ID:       "modern-loft-mariahilf",
			Title:    "Modern Loft Mariahilf",
			Location: "1060 Wien",
			Prompt:   "Contemporary urban loft space in Vienna, industrial chic design, exposed brick walls, modern furnishings, natural daylight, professional real estate photography, 8K quality",
		},
		{
			ID:       "villa-hietzing",
			Title:    "Villa Hietzing",
			Location: "1130 Wien",
			Prompt:   "Elegant Vienna villa exterior, classic architecture, manicured garden, golden hour photography, luxury residential real estate, 8K quality, professional composition",
		},
		{
			ID:       "neubau-balkon",
			Title:    "Neubau Balkon",
			Location: "1070 Wien",
			Prompt:   "Modern apartment balcony in Vienna Neubau district, urban views, contemporary outdoor design, evening ambiance, lifestyle real estate photography, 8K quality",
		},
		{
			ID:       "dachgeschoss-leopoldstadt",
			Title:    "Dachgeschoss Leopoldstadt",
			Location: "1020 Wien",
			Prompt:   "Bright top-floor apartment in Vienna Leopoldstadt, skylights, modern interior design, spacious living area, natural light, professional real estate photography, 8K quality",
		},
	},
}

// DefaultCatalog returns the built-in definitions: four hero concepts, each an
// image plus a derived video, then six portfolio images.
func DefaultCatalog() []domain.AssetDefinition {
	return builtinCatalog.Definitions()
}

// LoadCatalog reads a JSON catalog from path. An empty path yields the
// built-in catalog.
func LoadCatalog(path string) ([]domain.AssetDefinition, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read catalog: %w", err)
	}
	c, err := jsoncfg.ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline: catalog %s: %w", path, err)
	}
	return c.Definitions(), nil
}

// ExpectedLocations is the number of resource locations a full run of defs
// produces.
func ExpectedLocations(defs []domain.AssetDefinition) int {
	n := 0
	for _, d := range defs {
		n += d.Locations()
	}
	return n
}

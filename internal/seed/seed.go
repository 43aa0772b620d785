// Package seed loads a YAML catalog (categories, equipment, kits) into the
// store. Every write is an upsert keyed by slug, so seeding is repeatable.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Categories []Category `yaml:"categories"`
	Products   []Product  `yaml:"products"`
	Kits       []Kit      `yaml:"kits"`
}

type Category struct {
	Slug   string `yaml:"slug"`
	NameEN string `yaml:"name_en"`
	NameFR string `yaml:"name_fr"`
}

type Product struct {
	Slug          string   `yaml:"slug"`
	Category      string   `yaml:"category"`
	Brand         string   `yaml:"brand"`
	NameEN        string   `yaml:"name_en"`
	NameFR        string   `yaml:"name_fr"`
	DescriptionEN string   `yaml:"description_en"`
	DescriptionFR string   `yaml:"description_fr"`
	SpecsEN       string   `yaml:"specs_en"`
	SpecsFR       string   `yaml:"specs_fr"`
	Images        []string `yaml:"images"`
	Stock         int      `yaml:"stock"`
	DailyRate     float64  `yaml:"daily_rate"`
	Hidden        bool     `yaml:"hidden"`
	KitAnchor     bool     `yaml:"kit_anchor"`
}

type Kit struct {
	Anchor      string    `yaml:"anchor"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Modifier    float64   `yaml:"base_price_modifier"`
	Items       []KitItem `yaml:"items"`
}

type KitItem struct {
	Slot         string `yaml:"slot"`
	Product      string `yaml:"product"`
	Mandatory    bool   `yaml:"mandatory"`
	Quantity     int    `yaml:"quantity"`
	SwapCategory string `yaml:"swap_category"`
}

// KitWriter saves a kit template with its items.
type KitWriter interface {
	SaveTemplate(ctx context.Context, t domain.KitTemplate, items []domain.KitItem) (string, error)
}

type Summary struct {
	Categories int
	Products   int
	Kits       int
}

func Parse(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// Default returns the catalog bundled with the binary.
func Default() (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(defaultCatalog, &c); err != nil {
		return c, fmt.Errorf("parse default catalog: %w", err)
	}
	return c, nil
}

type Seeder struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
	Kits  KitWriter
}

func (s *Seeder) Apply(ctx context.Context, c Catalog) (Summary, error) {
	var sum Summary
	catIDs := map[string]string{}
	for _, cat := range c.Categories {
		id, err := s.Cats.Upsert(ctx, domain.Category{Slug: cat.Slug, NameEN: cat.NameEN, NameFR: cat.NameFR})
		if err != nil {
			return sum, fmt.Errorf("category %s: %w", cat.Slug, err)
		}
		catIDs[cat.Slug] = id
		sum.Categories++
	}

	lookupCat := func(slug string) (string, error) {
		if id, ok := catIDs[slug]; ok {
			return id, nil
		}
		cat, err := s.Cats.BySlug(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("unknown category %q", slug)
		}
		catIDs[slug] = cat.ID
		return cat.ID, nil
	}

	prodIDs := map[string]string{}
	for _, p := range c.Products {
		catID, err := lookupCat(p.Category)
		if err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Slug, err)
		}
		images := p.Images
		if images == nil {
			images = []string{}
		}
		imgs, _ := json.Marshal(images)
		id, err := s.Prods.Upsert(ctx, domain.Product{
			Slug:           p.Slug,
			NameEN:         p.NameEN,
			NameFR:         p.NameFR,
			DescriptionEN:  p.DescriptionEN,
			DescriptionFR:  p.DescriptionFR,
			SpecsEN:        p.SpecsEN,
			SpecsFR:        p.SpecsFR,
			CategoryID:     catID,
			Brand:          p.Brand,
			ImagesJSON:     string(imgs),
			StockAvailable: p.Stock,
			IsVisible:      !p.Hidden,
			IsKitAnchor:    p.KitAnchor,
			DailyRate:      p.DailyRate,
		})
		if err != nil {
			return sum, fmt.Errorf("product %s: %w", p.Slug, err)
		}
		prodIDs[p.Slug] = id
		sum.Products++
	}

	lookupProd := func(slug string) (string, error) {
		if id, ok := prodIDs[slug]; ok {
			return id, nil
		}
		p, err := s.Prods.BySlug(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("unknown product %q", slug)
		}
		prodIDs[slug] = p.ID
		return p.ID, nil
	}

	for _, k := range c.Kits {
		anchor, err := lookupProd(k.Anchor)
		if err != nil {
			return sum, fmt.Errorf("kit %s: %w", k.Name, err)
		}
		items := make([]domain.KitItem, 0, len(k.Items))
		for i, it := range k.Items {
			pid, err := lookupProd(it.Product)
			if err != nil {
				return sum, fmt.Errorf("kit %s: %w", k.Name, err)
			}
			swap := ""
			if it.SwapCategory != "" {
				if swap, err = lookupCat(it.SwapCategory); err != nil {
					return sum, fmt.Errorf("kit %s: %w", k.Name, err)
				}
			}
			items = append(items, domain.KitItem{
				ProductID:           pid,
				SlotName:            it.Slot,
				IsMandatory:         it.Mandatory,
				DefaultQuantity:     it.Quantity,
				SwappableCategoryID: swap,
				DisplayOrder:        i,
			})
		}
		if _, err := s.Kits.SaveTemplate(ctx, domain.KitTemplate{
			Name:              k.Name,
			Description:       k.Description,
			MainProductID:     anchor,
			BasePriceModifier: k.Modifier,
		}, items); err != nil {
			return sum, fmt.Errorf("kit %s: %w", k.Name, err)
		}
		sum.Kits++
	}
	return sum, nil
}

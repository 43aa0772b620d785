package domain

import "encoding/json"

type Category struct {
	ID     string `db:"id" json:"id"`
	Slug   string `db:"slug" json:"slug"`
	NameEN string `db:"name_en" json:"nameEn"`
	NameFR string `db:"name_fr" json:"nameFr"`
}

// Product is the full equipment record. Stock and rates stay server-side:
// customers only ever see PublicProduct.
type Product struct {
	ID             string  `db:"id"`
	Slug           string  `db:"slug"`
	NameEN         string  `db:"name_en"`
	NameFR         string  `db:"name_fr"`
	DescriptionEN  string  `db:"description_en"`
	DescriptionFR  string  `db:"description_fr"`
	SpecsEN        string  `db:"specs_en"`
	SpecsFR        string  `db:"specs_fr"`
	CategoryID     string  `db:"category_id"`
	Brand          string  `db:"brand"`
	ImagesJSON     string  `db:"images_json"`
	StockAvailable int     `db:"stock_available"`
	IsVisible      bool    `db:"is_visible"`
	IsKitAnchor    bool    `db:"is_kit_anchor"`
	DailyRate      float64 `db:"daily_rate"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
}

type PublicProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameEN      string `json:"nameEn"`
	NameFR      string `json:"nameFr"`
	Slug        string `json:"slug"`
	CategoryID  string `json:"categoryId"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
	Specs       string `json:"specs,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
	IsKitAnchor bool   `json:"isKitAnchor"`
}

// FileURLFunc builds a public URL for a stored file of a record.
type FileURLFunc func(collection, recordID, filename string) string

func (p Product) Images() []string {
	var out []string
	if p.ImagesJSON == "" {
		return out
	}
	_ = json.Unmarshal([]byte(p.ImagesJSON), &out)
	return out
}

func (p Product) Available() bool { return p.IsVisible && p.StockAvailable > 0 }

// Public projects the record for customers in the given language.
func (p Product) Public(lang string, fileURL FileURLFunc) PublicProduct {
	out := PublicProduct{
		ID:          p.ID,
		Name:        pick(lang, p.NameEN, p.NameFR),
		NameEN:      p.NameEN,
		NameFR:      pick("fr", p.NameEN, p.NameFR),
		Slug:        p.Slug,
		CategoryID:  p.CategoryID,
		Brand:       p.Brand,
		Description: pick(lang, p.DescriptionEN, p.DescriptionFR),
		Specs:       pick(lang, p.SpecsEN, p.SpecsFR),
		IsAvailable: p.Available(),
		IsKitAnchor: p.IsKitAnchor,
	}
	if imgs := p.Images(); len(imgs) > 0 && fileURL != nil {
		out.ImageURL = fileURL("equipment", p.ID, imgs[0])
	}
	return out
}

func pick(lang, en, fr string) string {
	if lang == "fr" && fr != "" {
		return fr
	}
	return en
}

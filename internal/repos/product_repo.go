package repos

import (
	"context"
	"strings"

	"tfsrentals/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `
    id, slug, name_en, name_fr, description_en, description_fr, specs_en, specs_fr,
    category_id, brand, images_json, stock_available, is_visible, is_kit_anchor,
    daily_rate, created_at, updated_at`

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM equipment WHERE id = ?`, id)
	return p, err
}

func (r *ProductRepo) BySlug(ctx context.Context, slug string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM equipment WHERE slug = ?`, slug)
	return p, err
}

// ByIDs loads the given products keyed by id. Unknown ids are simply absent.
func (r *ProductRepo) ByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM equipment WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []domain.Product
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// VisibleByCategory lists the customer-visible products of a category.
func (r *ProductRepo) VisibleByCategory(ctx context.Context, catID string) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT `+productColumns+`
	  FROM equipment
	  WHERE category_id = ? AND is_visible = 1
	  ORDER BY name_en, id
	`, catID)
	return out, err
}

func (r *ProductRepo) Search(ctx context.Context, q, catID string, limit, offset int) ([]domain.Product, error) {
	where := `is_visible = 1`
	args := []any{}
	if q != "" {
		q = "%" + strings.ToLower(q) + "%"
		where += ` AND (LOWER(name_en) LIKE ? OR LOWER(name_fr) LIKE ? OR LOWER(brand) LIKE ?)`
		args = append(args, q, q, q)
	}
	if catID != "" {
		where += ` AND category_id = ?`
		args = append(args, catID)
	}

	sql := `
	  SELECT ` + productColumns + `
	  FROM equipment
	  WHERE ` + where + `
	  ORDER BY name_en, id
	  LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, sql, args...)
	return out, err
}

// Upsert writes a product keyed by slug and returns its id.
func (r *ProductRepo) Upsert(ctx context.Context, p domain.Product) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ImagesJSON == "" {
		p.ImagesJSON = "[]"
	}
	ts := now()
	var id string
	err := r.db.GetContext(ctx, &id, `
	  INSERT INTO equipment(`+productColumns+`)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	  ON CONFLICT(slug) DO UPDATE SET
	    name_en = excluded.name_en, name_fr = excluded.name_fr,
	    description_en = excluded.description_en, description_fr = excluded.description_fr,
	    specs_en = excluded.specs_en, specs_fr = excluded.specs_fr,
	    category_id = excluded.category_id, brand = excluded.brand,
	    images_json = excluded.images_json, stock_available = excluded.stock_available,
	    is_visible = excluded.is_visible, is_kit_anchor = excluded.is_kit_anchor,
	    daily_rate = excluded.daily_rate, updated_at = excluded.updated_at
	  RETURNING id
	`, p.ID, p.Slug, p.NameEN, p.NameFR, p.DescriptionEN, p.DescriptionFR, p.SpecsEN, p.SpecsFR,
		p.CategoryID, p.Brand, p.ImagesJSON, p.StockAvailable, p.IsVisible, p.IsKitAnchor,
		p.DailyRate, ts, ts)
	return id, err
}

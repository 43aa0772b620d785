package repos

import (
	"context"

	"tfsrentals/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, slug, name_en, name_fr
	  FROM categories
	  ORDER BY name_en
	`)
	return out, err
}

func (r *CategoryRepo) BySlug(ctx context.Context, slug string) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT id, slug, name_en, name_fr FROM categories WHERE slug = ?`, slug)
	return c, err
}

// Upsert inserts or renames a category keyed by slug and returns its id.
func (r *CategoryRepo) Upsert(ctx context.Context, c domain.Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var id string
	err := r.db.GetContext(ctx, &id, `
	  INSERT INTO categories(id, slug, name_en, name_fr)
	  VALUES (?, ?, ?, ?)
	  ON CONFLICT(slug) DO UPDATE SET name_en = excluded.name_en, name_fr = excluded.name_fr
	  RETURNING id
	`, c.ID, c.Slug, c.NameEN, c.NameFR)
	return id, err
}

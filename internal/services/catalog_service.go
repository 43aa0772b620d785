package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"
)

type CatalogService struct {
	Cats    *repos.CategoryRepo
	Prods   *repos.ProductRepo
	FileURL domain.FileURLFunc
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, fileURL domain.FileURLFunc) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods, FileURL: fileURL}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx)
}

// Search lists visible products, optionally filtered by query text and
// category slug.
func (s *CatalogService) Search(ctx context.Context, q, categorySlug, lang string, page, pageSize int) ([]domain.PublicProduct, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 24
	}
	catID := ""
	if categorySlug != "" {
		c, err := s.Cats.BySlug(ctx, categorySlug)
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.PublicProduct{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load category: %w", err)
		}
		catID = c.ID
	}
	offset := (page - 1) * pageSize
	prods, err := s.Prods.Search(ctx, q, catID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	out := make([]domain.PublicProduct, 0, len(prods))
	for _, p := range prods {
		out = append(out, p.Public(lang, s.FileURL))
	}
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, slug, lang string) (domain.PublicProduct, error) {
	p, err := s.Prods.BySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !p.IsVisible) {
		return domain.PublicProduct{}, ErrProductNotFound
	}
	if err != nil {
		return domain.PublicProduct{}, fmt.Errorf("load product: %w", err)
	}
	return p.Public(lang, s.FileURL), nil
}

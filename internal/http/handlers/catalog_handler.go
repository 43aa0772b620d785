package handlers

import (
	"strconv"
	"strings"

	"tfsrentals/internal/log"
	"tfsrentals/internal/services"
	"tfsrentals/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/categories
func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return fail(c, "catalog.categories.fail", err)
	}
	return c.JSON(fiber.Map{"items": cats})
}

// GET /api/v1/products?q=&category=&page=
func (h *CatalogHandler) Products(c *fiber.Ctx) error {
	q := ""
	if raw := c.Query("q"); strings.TrimSpace(raw) != "" {
		v, ok := validate.Q(raw)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "q"})
			return jsonError(c, fiber.StatusBadRequest, "Enter a valid keyword")
		}
		q = v
	}
	category := strings.TrimSpace(c.Query("category"))
	if category != "" {
		if _, ok := validate.Slug(category); !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "category"})
			return jsonError(c, fiber.StatusBadRequest, "Invalid category")
		}
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))

	products, err := h.Catalog.Search(c.UserContext(), q, category, lang(c), page, 24)
	if err != nil {
		return fail(c, "catalog.search.fail", err)
	}
	return c.JSON(fiber.Map{"items": products, "count": len(products)})
}

// GET /api/v1/products/:slug
func (h *CatalogHandler) Product(c *fiber.Ctx) error {
	slug, ok := validate.Slug(c.Params("slug"))
	if !ok {
		return jsonError(c, fiber.StatusNotFound, "This item is no longer available")
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), slug, lang(c))
	if err != nil {
		return fail(c, "catalog.product.fail", err)
	}
	return c.JSON(p)
}

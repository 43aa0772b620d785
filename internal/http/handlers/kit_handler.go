package handlers

import (
	"errors"

	applog "tfsrentals/internal/log"
	"tfsrentals/internal/services"
	"tfsrentals/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type KitHandler struct {
	Kits *services.KitService
}

// GET /api/v1/kits/:productId
//
// A product that anchors no kit is a 404 with {"bundle": false}; store
// failures are 503 so clients can retry instead of hiding the kit option.
func (h *KitHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("productId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"bundle": false})
	}
	kit, err := h.Kits.Resolve(c.UserContext(), id, lang(c))
	if errors.Is(err, services.ErrNoBundle) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"bundle": false})
	}
	if err != nil {
		applog.Error(c, "kit.resolve.fail", err, map[string]any{"product_id": id})
		return jsonError(c, fiber.StatusServiceUnavailable, "Kit temporarily unavailable")
	}
	return c.JSON(fiber.Map{"bundle": true, "kit": kit})
}

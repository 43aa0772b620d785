package handlers

import (
	"errors"
	"fmt"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/log"
	"tfsrentals/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

type addItemBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type addBundleBody struct {
	KitTemplateID string             `json:"kitTemplateId"`
	Items         []domain.Selection `json:"items"`
	StartDate     string             `json:"startDate"`
	EndDate       string             `json:"endDate"`
}

func rentalDates(start, end string) (domain.DateRange, error) {
	r, err := domain.NewDateRange(start, end)
	if err != nil {
		return r, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return r, nil
}

// GET /api/v1/cart
func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.Cart.Get(c.UserContext(), currentUser(c).ID, lang(c))
	if errors.Is(err, services.ErrNoCart) {
		return c.JSON(domain.Cart{Items: []domain.CartItem{}})
	}
	if err != nil {
		return fail(c, "cart.view.fail", err)
	}
	return c.JSON(cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var in addItemBody
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	dates, err := rentalDates(in.StartDate, in.EndDate)
	if err != nil {
		return fail(c, "cart.add.fail", err)
	}
	res, err := h.Cart.AddItem(c.UserContext(), currentUser(c).ID, in.ProductID, in.Quantity, dates)
	if err != nil {
		return fail(c, "cart.add.fail", err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// POST /api/v1/cart/bundles
func (h *CartHandler) AddBundle(c *fiber.Ctx) error {
	var in addBundleBody
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	dates, err := rentalDates(in.StartDate, in.EndDate)
	if err != nil {
		return fail(c, "cart.bundle.fail", err)
	}
	user := currentUser(c)
	var res services.AddResult
	if in.KitTemplateID != "" {
		res, err = h.Cart.AddKit(c.UserContext(), user.ID, in.KitTemplateID, in.Items, dates)
	} else {
		res, err = h.Cart.AddBundle(c.UserContext(), user.ID, in.Items, dates)
	}
	if err != nil {
		return fail(c, "cart.bundle.fail", err)
	}
	log.Info(c, "cart.bundle.add", map[string]any{"group_id": res.GroupID, "items": len(in.Items)})
	return c.Status(fiber.StatusCreated).JSON(res)
}

// DELETE /api/v1/cart/groups/:groupId
func (h *CartHandler) RemoveGroup(c *fiber.Ctx) error {
	if err := h.Cart.RemoveGroup(c.UserContext(), currentUser(c).ID, c.Params("groupId")); err != nil {
		return fail(c, "cart.group.remove.fail", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DELETE /api/v1/cart/items/:id
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	if err := h.Cart.RemoveItem(c.UserContext(), currentUser(c).ID, c.Params("id")); err != nil {
		return fail(c, "cart.item.remove.fail", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

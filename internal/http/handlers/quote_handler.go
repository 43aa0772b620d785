package handlers

import (
	"errors"
	"sort"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/log"
	"tfsrentals/internal/services"

	"github.com/gofiber/fiber/v2"
)

const maxSignatureSize = 512 << 10

type QuoteHandler struct {
	Quotes *services.QuoteService
}

// POST /api/v1/quotes
func (h *QuoteHandler) Create(c *fiber.Ctx) error {
	var in services.QuoteRequest
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if u := currentUser(c); u != nil {
		in.UserID = u.ID
	}
	res, err := h.Quotes.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "quote.create.fail", err)
	}
	log.Audit(c, "quote.create", map[string]any{"quote_id": res.QuoteID, "confirmation": res.ConfirmationNumber})
	return c.Status(fiber.StatusCreated).JSON(res)
}

// POST /api/v1/cart/quote
func (h *QuoteHandler) FromCart(c *fiber.Ctx) error {
	var in services.QuoteRequest
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	res, err := h.Quotes.SubmitFromCart(c.UserContext(), currentUser(c).ID, in)
	if err != nil {
		return fail(c, "quote.cart.fail", err)
	}
	log.Audit(c, "quote.create.cart", map[string]any{"quote_id": res.QuoteID})
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GET /api/v1/quotes/:id?token=
//
// Guests need the magic-link token. A signed-in owner may omit it.
func (h *QuoteHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	token := c.Query("token")
	if token == "" {
		if u := currentUser(c); u != nil {
			q, err := h.Quotes.Get(c.UserContext(), id)
			if err == nil && q.UserID != "" && q.UserID == u.ID {
				return c.JSON(q)
			}
		}
		return jsonError(c, fiber.StatusNotFound, "Quote not found")
	}
	q, err := h.Quotes.GetByToken(c.UserContext(), id, token)
	if err != nil {
		if errors.Is(err, services.ErrQuoteNotFound) {
			log.Security(c, "quote.token.miss", map[string]any{"quote_id": id})
		}
		return fail(c, "quote.get.fail", err)
	}
	return c.JSON(q)
}

// POST /api/v1/quotes/:id/sign?token=  (multipart field "signature", PNG)
func (h *QuoteHandler) Sign(c *fiber.Ctx) error {
	fh, err := c.FormFile("signature")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "signature image required")
	}
	if fh.Size == 0 || fh.Size > maxSignatureSize {
		return jsonError(c, fiber.StatusBadRequest, "signature image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, "quote.sign.fail", err)
	}
	defer f.Close()

	q, err := h.Quotes.Sign(c.UserContext(), c.Params("id"), c.Query("token"), f, fh.Size)
	if err != nil {
		return fail(c, "quote.sign.fail", err)
	}
	log.Audit(c, "quote.sign", map[string]any{"quote_id": q.ID})
	return c.JSON(q)
}

type rejectBody struct {
	Reason string `json:"reason" form:"reason"`
}

// POST /api/v1/quotes/:id/reject?token=
func (h *QuoteHandler) Reject(c *fiber.Ctx) error {
	var in rejectBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := h.Quotes.Reject(c.UserContext(), c.Params("id"), c.Query("token"), in.Reason); err != nil {
		return fail(c, "quote.reject.fail", err)
	}
	log.Audit(c, "quote.reject", map[string]any{"quote_id": c.Params("id")})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/me/quotes lists quotes placed from the account or with its email.
func (h *QuoteHandler) Mine(c *fiber.Ctx) error {
	u := currentUser(c)
	byUser, err := h.Quotes.ListByUser(c.UserContext(), u.ID)
	if err != nil {
		return fail(c, "quote.mine.fail", err)
	}
	byEmail, err := h.Quotes.ListByEmail(c.UserContext(), u.Email)
	if err != nil {
		return fail(c, "quote.mine.fail", err)
	}
	seen := map[string]bool{}
	out := make([]domain.Quote, 0, len(byUser)+len(byEmail))
	for _, q := range append(byUser, byEmail...) {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return c.JSON(fiber.Map{"items": out})
}

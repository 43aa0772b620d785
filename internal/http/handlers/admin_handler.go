package handlers

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"tfsrentals/internal/domain"
	applog "tfsrentals/internal/log"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/services"

	"github.com/gofiber/fiber/v2"
)

const maxQuotePDFSize = 8 << 20

type AdminHandler struct {
	Quotes *services.QuoteService
	Emails *services.EmailQueue
	Users  *repos.UserRepo
}

// GET /api/v1/admin/quotes?page=&perPage=&status=
func (h *AdminHandler) ListQuotes(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("perPage", "20"))
	status := c.Query("status")
	if status != "" && !domain.QuoteStatus(status).Valid() {
		return jsonError(c, fiber.StatusBadRequest, "invalid status")
	}
	res, err := h.Quotes.List(c.UserContext(), page, perPage, status)
	if err != nil {
		return fail(c, "admin.quotes.list.fail", err)
	}
	return c.JSON(res)
}

// GET /api/v1/admin/quotes/:id
func (h *AdminHandler) GetQuote(c *fiber.Ctx) error {
	q, err := h.Quotes.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "admin.quotes.get.fail", err)
	}
	return c.JSON(fiber.Map{"quote": q, "editable": q.Editable(h.now())})
}

type statusBody struct {
	Status string  `json:"status" form:"status"`
	Notes  *string `json:"internalNotes" form:"internalNotes"`
}

// POST /api/v1/admin/quotes/:id/status
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	var in statusBody
	if err := c.BodyParser(&in); err != nil || in.Status == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing status")
	}
	status := domain.QuoteStatus(in.Status)
	if !status.Valid() {
		return jsonError(c, fiber.StatusBadRequest, "invalid status")
	}
	if err := h.Quotes.UpdateStatus(c.UserContext(), id, status, in.Notes); err != nil {
		return fail(c, "admin.quotes.status.fail", err)
	}
	applog.Audit(c, "admin.quotes.status", map[string]any{"quote_id": id, "status": in.Status})
	return c.SendStatus(fiber.StatusNoContent)
}

type priceBody struct {
	Price float64 `json:"price" form:"price"`
}

// POST /api/v1/admin/quotes/:id/price
func (h *AdminHandler) SetPrice(c *fiber.Ctx) error {
	id := c.Params("id")
	var in priceBody
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid price")
	}
	if err := h.Quotes.SetEstimatedPrice(c.UserContext(), id, in.Price); err != nil {
		return fail(c, "admin.quotes.price.fail", err)
	}
	applog.Audit(c, "admin.quotes.price", map[string]any{"quote_id": id, "price": in.Price})
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/admin/quotes/:id/upload (multipart: quote_pdf, price)
func (h *AdminHandler) Upload(c *fiber.Ctx) error {
	id := c.Params("id")
	fh, err := c.FormFile("quote_pdf")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "quote_pdf is required")
	}
	if fh.Size == 0 || fh.Size > maxQuotePDFSize {
		return jsonError(c, fiber.StatusBadRequest, "quote_pdf size not accepted")
	}
	var price *float64
	if raw := strings.TrimSpace(c.FormValue("price")); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p < 0 {
			return jsonError(c, fiber.StatusBadRequest, "invalid price")
		}
		price = &p
	}

	f, err := fh.Open()
	if err != nil {
		return fail(c, "admin.quotes.upload.fail", err)
	}
	defer f.Close()
	head := make([]byte, 5)
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, []byte("%PDF-")) {
		applog.Security(c, "admin.quotes.upload.reject", map[string]any{"quote_id": id, "reason": "not_pdf"})
		return jsonError(c, fiber.StatusBadRequest, "quote_pdf must be a PDF")
	}

	q, err := h.Quotes.Upload(c.UserContext(), id, io.MultiReader(bytes.NewReader(head), f), fh.Size, price)
	if err != nil {
		return fail(c, "admin.quotes.upload.fail", err)
	}
	applog.Audit(c, "admin.quotes.upload", map[string]any{"quote_id": id, "file": q.QuotePDF})
	return c.JSON(q)
}

// GET /api/v1/admin/emails/stats
func (h *AdminHandler) EmailStats(c *fiber.Ctx) error {
	stats, err := h.Emails.Stats(c.UserContext())
	if err != nil {
		return fail(c, "admin.emails.stats.fail", err)
	}
	return c.JSON(stats)
}

// GET /api/v1/admin/users lists customer accounts.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Users.ListCustomers(c.UserContext())
	if err != nil {
		return fail(c, "admin.users.list.fail", err)
	}
	return c.JSON(fiber.Map{"items": users})
}

// DeleteUser removes an account with its carts and sessions. Its quotes stay.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing id")
	}
	if err := h.Users.DeleteUserCascade(c.UserContext(), id); err != nil {
		return fail(c, "admin.users.delete.fail", err)
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) now() time.Time {
	if h.Quotes != nil && h.Quotes.Now != nil {
		return h.Quotes.Now()
	}
	return time.Now()
}

package handlers

import (
	"tfsrentals/internal/concierge"

	"github.com/gofiber/fiber/v2"
)

type ConciergeHandler struct {
	Concierge *concierge.Concierge
}

type chatBody struct {
	Messages []concierge.Message `json:"messages"`
}

// POST /api/v1/concierge
func (h *ConciergeHandler) Chat(c *fiber.Ctx) error {
	var in chatBody
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	reply, err := h.Concierge.Reply(c.UserContext(), in.Messages)
	if err != nil {
		return fail(c, "concierge.reply.fail", err)
	}
	return c.JSON(fiber.Map{"message": concierge.Message{Role: concierge.RoleAssistant, Text: reply}})
}

package handlers

import (
	"crypto/subtle"
	"strings"

	applog "tfsrentals/internal/log"
	"tfsrentals/internal/services"

	"github.com/gofiber/fiber/v2"
)

// cronBatch is how many emails one scheduled call may send.
const cronBatch = 20

type CronHandler struct {
	Emails *services.EmailQueue
	Secret string
}

// GET /api/v1/cron/process-email-queue (Authorization: Bearer <secret>)
func (h *CronHandler) ProcessEmails(c *fiber.Ctx) error {
	if !h.authorized(c.Get(fiber.HeaderAuthorization)) {
		applog.Security(c, "cron.unauthorized", nil)
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	res, err := h.Emails.ProcessBatch(c.UserContext(), cronBatch)
	if err != nil {
		return fail(c, "cron.emails.fail", err)
	}
	applog.Info(c, "cron.emails", map[string]any{"processed": res.Processed, "sent": res.Sent, "failed": res.Failed})
	return c.JSON(fiber.Map{"success": true, "result": res})
}

func (h *CronHandler) authorized(header string) bool {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || h.Secret == "" || tok == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok), []byte(h.Secret)) == 1
}

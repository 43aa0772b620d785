package handlers

import (
	"context"
	"errors"
	"strings"

	"tfsrentals/internal/concierge"
	applog "tfsrentals/internal/log"
	"tfsrentals/internal/services"

	"github.com/gofiber/fiber/v2"
)

const (
	genericError = "Something went wrong. Please try again."
	timeoutError = "The request took too long. Please try again."
)

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// fail maps a service error onto a status code. Anything unrecognised is
// logged under action and answered with a generic message.
func fail(c *fiber.Ctx, action string, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return jsonError(c, fiber.StatusBadRequest, validationMessage(err))
	case errors.Is(err, services.ErrBadCreds):
		return jsonError(c, fiber.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrNoCart):
		return jsonError(c, fiber.StatusNotFound, "No active cart")
	case errors.Is(err, services.ErrQuoteNotFound):
		return jsonError(c, fiber.StatusNotFound, "Quote not found")
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrQuoteLocked):
		return jsonError(c, fiber.StatusConflict, "Quote is locked")
	case errors.Is(err, services.ErrInvalidStatus):
		return jsonError(c, fiber.StatusConflict, "Invalid quote status")
	case errors.Is(err, concierge.ErrUnavailable):
		return jsonError(c, fiber.StatusServiceUnavailable, "Concierge unavailable")
	case errors.Is(err, concierge.ErrEmptyConversation), errors.Is(err, concierge.ErrBadMessage):
		return jsonError(c, fiber.StatusBadRequest, "Invalid conversation")
	case errors.Is(err, context.DeadlineExceeded):
		applog.Error(c, action, err, nil)
		return jsonError(c, fiber.StatusGatewayTimeout, timeoutError)
	case errors.Is(err, services.ErrQuoteCreate):
		applog.Error(c, action, err, nil)
		return jsonError(c, fiber.StatusInternalServerError, "Failed to create quote request")
	}
	applog.Error(c, action, err, nil)
	return jsonError(c, fiber.StatusInternalServerError, genericError)
}

// validationMessage keeps the field hint after the last "invalid input: ".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, services.ErrValidation.Error()); i >= 0 {
		return msg[i:]
	}
	return services.ErrValidation.Error()
}

// lang picks the response language from ?lang= or Accept-Language.
func lang(c *fiber.Ctx) string {
	if l := c.Query("lang"); l != "" {
		if strings.EqualFold(l, "fr") {
			return "fr"
		}
		return "en"
	}
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderAcceptLanguage)), "fr") {
		return "fr"
	}
	return "en"
}

// ErrorHandler is the app-wide fallback. Client errors keep their message;
// server errors never leak details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return jsonError(c, fe.Code, fe.Message)
	}
	applog.Error(c, "server.error", err, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return jsonError(c, fiber.StatusGatewayTimeout, timeoutError)
	}
	return jsonError(c, fiber.StatusInternalServerError, genericError)
}

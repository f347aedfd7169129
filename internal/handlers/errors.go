package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/paygw/internal/ifthenpay"
	"github.com/example/paygw/internal/services"
)

// ErrorHandler maps service errors to HTTP responses. Anything unmapped is a 500
// and gets logged.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			verr *services.ValidationError
			ferr *fiber.Error
		)
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(verr)
		case errors.As(err, &ferr):
			return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
		}

		status := statusFor(err)
		message := err.Error()
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		}
		if status == fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return c.Status(status).JSON(fiber.Map{"error": message})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrPayableNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrMissingGatewayState),
		errors.Is(err, services.ErrGatewayDisabled),
		errors.Is(err, services.ErrUnsupportedCurrency),
		errors.Is(err, ifthenpay.ErrNoBackofficeKey):
		return fiber.StatusConflict
	case errors.Is(err, ifthenpay.ErrInvalidBackofficeKey),
		errors.Is(err, ifthenpay.ErrTransport),
		errors.Is(err, ifthenpay.ErrFormat),
		errors.Is(err, services.ErrMissingRedirect):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

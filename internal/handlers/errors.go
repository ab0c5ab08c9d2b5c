package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/oakline/internal/apperr"
)

// ErrorHandler maps application errors to HTTP responses. Validation and
// conflict errors pass their precise message through; internal and
// gateway failures are logged in full and answered generically.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if apperr.Is(appErr, apperr.ErrInternal) || apperr.Is(appErr, apperr.ErrExternal) {
			log.Printf("%s %s failed: %v", c.Method(), c.Path(), appErr)
		}
		return c.Status(appErr.StatusCode).JSON(fiber.Map{
			"success": false,
			"error":   apperr.ClientMessage(appErr),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"error":   fiberErr.Message,
		})
	}

	log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "internal server error",
	})
}

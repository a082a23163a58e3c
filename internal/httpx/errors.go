package httpx

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders every error as {"message": ...}. Unexpected errors
// are logged and answered with a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		if e.Code >= fiber.StatusInternalServerError {
			zap.S().Errorw("request failed", "method", c.Method(), "path", c.Path(), "status", e.Code, "error", e.Message)
		}
		return c.Status(e.Code).JSON(fiber.Map{"message": e.Message})
	}

	zap.S().Errorw("unexpected error", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
	})
}

package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"teamboard/pkg/logger"
)

// ErrorHandler recovers panics into a generic 500, renders returned errors
// through the app's ErrorHandler and writes one request log line per request.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					zap.String("stack", string(debug.Stack())),
					zap.String("url", c.OriginalURL()),
				)
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error"})
			}
			logger.RequestLogger.Info("Request",
				zap.String("method", c.Method()),
				zap.String("url", c.OriginalURL()),
				zap.Int("status", c.Response().StatusCode()),
				zap.Duration("latency", time.Since(start)),
				zap.Any("requestID", c.Locals("requestid")),
			)
		}()

		// jalankan error handler di sini agar status yang dicatat sama dengan respons
		if err := c.Next(); err != nil {
			return c.App().ErrorHandler(c, err)
		}
		return nil
	}
}

// AppErrorHandler is the fiber.Config ErrorHandler. Framework errors keep
// their status and message; anything else becomes a generic 500.
func AppErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}
	logger.ErrorLogger.Error("Unhandled error", zap.String("url", c.OriginalURL()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error"})
}

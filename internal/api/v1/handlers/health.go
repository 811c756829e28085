package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"teamboard/pkg/logger"
)

const (
	ServiceName = "teamboard"
	Version     = "1.0.0"
)

// Health reports whether the store answers a ping.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	body := fiber.Map{
		"status":  "ok",
		"service": ServiceName,
		"version": Version,
		"store":   h.deps.StoreName,
		"cache":   h.deps.Cached,
	}
	if err := h.deps.Store.Ping(ctx); err != nil {
		logger.ErrorLogger.Error("Health check failed", zap.Error(err))
		body["status"] = "unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return c.JSON(body)
}

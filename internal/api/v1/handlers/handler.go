package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"teamboard/internal/config"
	"teamboard/internal/models"
	"teamboard/pkg/logger"
)

type Handler struct {
	deps *config.Dependencies
}

func New(deps *config.Dependencies) *Handler {
	return &Handler{deps: deps}
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// bind parses the JSON body into req and runs the validator tags on it. On
// failure the 400 response has already been written and handled is true.
func (h *Handler) bind(c *fiber.Ctx, req interface{}) (handled bool, err error) {
	if err := c.BodyParser(req); err != nil {
		logger.AuditLogger.Warn("Bad request body", zap.String("url", c.OriginalURL()), zap.Error(err))
		return true, message(c, fiber.StatusBadRequest, "Bad request")
	}
	if err := h.deps.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error", zap.String("url", c.OriginalURL()), zap.Error(err))
		return true, message(c, fiber.StatusBadRequest, validationMessage(err))
	}
	return false, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Invalid %s", strings.ToLower(fe.Field()))
	}
}

// respondError maps service errors onto the {message} responses.
func respondError(c *fiber.Ctx, err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return message(c, fiber.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrInvalidAssignee):
		return message(c, fiber.StatusBadRequest, "Assignee must be a project member")
	case errors.Is(err, models.ErrEmailTaken):
		return message(c, fiber.StatusBadRequest, "User already exists")
	case errors.Is(err, models.ErrInvalidCredentials):
		return message(c, fiber.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, models.ErrForbidden):
		return message(c, fiber.StatusForbidden, "Not authorized")
	case errors.Is(err, models.ErrProjectNotFound):
		return message(c, fiber.StatusNotFound, "Project not found")
	case errors.Is(err, models.ErrTaskNotFound):
		return message(c, fiber.StatusNotFound, "Task not found")
	case errors.Is(err, models.ErrUserNotFound):
		return message(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, models.ErrNotFound):
		return message(c, fiber.StatusNotFound, "Not found")
	default:
		logger.ErrorLogger.Error("Server error",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Error(err),
		)
		return message(c, fiber.StatusInternalServerError, "Server error")
	}
}

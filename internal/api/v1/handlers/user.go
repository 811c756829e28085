package handlers

import "github.com/gofiber/fiber/v2"

// ListUsers backs the member picker: every user's name and email.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.deps.Users.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"teamboard/internal/middleware"
	"teamboard/internal/service"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	// parse dan validasi body
	var req registerRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}

	// simpan user baru lalu kembalikan token
	res, err := h.deps.Users.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	// 201 Created
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}
	// email dan password dicek di service, pesan error sama untuk keduanya
	res, err := h.deps.Users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	u, err := h.deps.Users.Me(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(u)
}

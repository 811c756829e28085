package handlers

import (
	"github.com/gofiber/fiber/v2"

	"teamboard/internal/middleware"
	"teamboard/internal/service"
)

type createProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

type updateProjectRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=255"`
	Description *string   `json:"description"`
	Members     *[]string `json:"members"`
}

func (h *Handler) CreateProject(c *fiber.Ctx) error {
	var req createProjectRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}
	p, err := h.deps.Projects.Create(c.UserContext(), middleware.UserID(c), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Members:     req.Members,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) ListProjects(c *fiber.Ctx) error {
	list, err := h.deps.Projects.ListForUser(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) GetProject(c *fiber.Ctx) error {
	p, err := h.deps.Projects.Get(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) UpdateProject(c *fiber.Ctx) error {
	var req updateProjectRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}
	// members menggantikan seluruh daftar member
	p, err := h.deps.Projects.Update(c.UserContext(), c.Params("id"), middleware.UserID(c), service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Members:     req.Members,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) DeleteProject(c *fiber.Ctx) error {
	if err := h.deps.Projects.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Project deleted"})
}

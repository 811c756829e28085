package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"teamboard/internal/middleware"
	"teamboard/internal/models"
	"teamboard/internal/service"
)

const dateOnly = "2006-01-02"

type createTaskRequest struct {
	Project     string `json:"project"`
	Title       string `json:"title" validate:"max=255"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
}

// Absent or null fields are left untouched. An empty assignee or dueDate
// clears the value.
type updateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"dueDate"`
	Status      *string `json:"status"`
}

type commentRequest struct {
	Text string `json:"text" validate:"required"`
}

// parseDueDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates.
func parseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return nil, models.Invalid("Invalid due date")
	}
	return &t, nil
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	// parse body request
	var req createTaskRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}

	// dueDate boleh kosong
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.deps.Tasks.Create(c.UserContext(), middleware.UserID(c), service.CreateTaskInput{
		Project:     req.Project,
		Title:       req.Title,
		Description: req.Description,
		Assignee:    strings.TrimSpace(req.Assignee),
		DueDate:     due,
		Status:      models.TaskStatus(req.Status),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) ListProjectTasks(c *fiber.Ctx) error {
	list, err := h.deps.Tasks.ListByProject(c.UserContext(), c.Params("projectId"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	t, err := h.deps.Tasks.Get(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	var req updateTaskRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}

	// hanya field yang dikirim yang diubah
	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Assignee != nil {
		assignee := strings.TrimSpace(*req.Assignee)
		patch.Assignee = &assignee
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return respondError(c, err)
		}
		patch.DueDate = due
		patch.ClearDueDate = due == nil
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		patch.Status = &status
	}

	t, err := h.deps.Tasks.Update(c.UserContext(), c.Params("id"), middleware.UserID(c), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	if err := h.deps.Tasks.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Task deleted"})
}

func (h *Handler) AddComment(c *fiber.Ctx) error {
	// text komentar wajib diisi
	var req commentRequest
	if handled, err := h.bind(c, &req); handled {
		return err
	}
	t, err := h.deps.Tasks.AddComment(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"teamboard/internal/access"
	"teamboard/internal/models"
	"teamboard/internal/repository"
	"teamboard/pkg/logger"
)

// Notifier receives board events after a mutation has been persisted.
type Notifier interface {
	Publish(ev models.BoardEvent)
}

type nopNotifier struct{}

func (nopNotifier) Publish(models.BoardEvent) {}

type CreateTaskInput struct {
	Project     string
	Title       string
	Description string
	Assignee    string
	DueDate     *time.Time
	Status      models.TaskStatus
}

// TaskPatch applies only the non-nil fields. An empty Assignee clears the
// assignment; ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Assignee     *string
	DueDate      *time.Time
	ClearDueDate bool
	Status       *models.TaskStatus
}

// Tasks authorizes against the task's project at the time of the request.
// The check and the write are separate statements, so a membership change in
// between is not detected.
type Tasks struct {
	users    repository.UserStore
	projects repository.ProjectStore
	tasks    repository.TaskStore
	notifier Notifier
	now      func() time.Time
}

func NewTasks(users repository.UserStore, projects repository.ProjectStore, tasks repository.TaskStore, notifier Notifier) *Tasks {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Tasks{users: users, projects: projects, tasks: tasks, notifier: notifier, now: time.Now}
}

func (s *Tasks) Create(ctx context.Context, userID string, in CreateTaskInput) (*models.TaskView, error) {
	if strings.TrimSpace(in.Project) == "" {
		return nil, models.Invalid("Project ID required")
	}
	// cek project dan keanggotaan user
	p, err := s.projects.GetProject(ctx, in.Project)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeMutation(access.EntityTask, p, userID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.Invalid("Title is required")
	}
	// status default "To Do"
	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		return nil, models.Invalid("Invalid status")
	}

	now := s.now()
	t := &models.Task{
		ID:          models.NewID(),
		Project:     p.ID,
		Title:       title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      status,
		Comments:    []models.Comment{},
		Attachments: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// assignee harus owner atau member project
	if in.Assignee != "" {
		if err := access.AuthorizeAssignee(p, in.Assignee); err != nil {
			return nil, err
		}
		assignee := in.Assignee
		t.Assignee = &assignee
	}

	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("Task created", zap.String("taskID", t.ID), zap.String("projectID", p.ID))
	return s.publish(ctx, models.EventTaskCreated, t)
}

func (s *Tasks) ListByProject(ctx context.Context, projectID, userID string) ([]models.TaskView, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeRead(p, userID); err != nil {
		return nil, err
	}
	list, err := s.tasks.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return taskViews(ctx, s.users, list)
}

func (s *Tasks) Get(ctx context.Context, taskID, userID string) (*models.TaskView, error) {
	t, _, err := s.load(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

// Authorize reports whether userID may mutate the task without changing it.
func (s *Tasks) Authorize(ctx context.Context, taskID, userID string) error {
	_, _, err := s.load(ctx, taskID, userID)
	return err
}

func (s *Tasks) Update(ctx context.Context, taskID, userID string, patch TaskPatch) (*models.TaskView, error) {
	t, p, err := s.load(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, models.Invalid("Title is required")
		}
		t.Title = title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	// string kosong menghapus assignee
	if patch.Assignee != nil {
		if *patch.Assignee == "" {
			t.Assignee = nil
		} else {
			if err := access.AuthorizeAssignee(p, *patch.Assignee); err != nil {
				return nil, err
			}
			assignee := *patch.Assignee
			t.Assignee = &assignee
		}
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		t.DueDate = &due
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, models.Invalid("Invalid status")
		}
		t.Status = *patch.Status
	}
	t.UpdatedAt = s.now()

	if err := s.tasks.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("Task updated", zap.String("taskID", t.ID))
	return s.publish(ctx, models.EventTaskUpdated, t)
}

func (s *Tasks) Delete(ctx context.Context, taskID, userID string) error {
	t, _, err := s.load(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, t.ID); err != nil {
		return err
	}
	logger.AuditLogger.Info("Task deleted", zap.String("taskID", taskID))
	s.notifier.Publish(models.BoardEvent{Type: models.EventTaskDeleted, Project: t.Project, TaskID: t.ID})
	return nil
}

func (s *Tasks) AddComment(ctx context.Context, taskID, userID, text string) (*models.TaskView, error) {
	if _, _, err := s.load(ctx, taskID, userID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.Invalid("Comment text is required")
	}

	c := models.Comment{ID: models.NewID(), User: userID, Text: text, CreatedAt: s.now()}
	if err := s.tasks.AddComment(ctx, taskID, c); err != nil {
		return nil, err
	}
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, models.EventTaskCommented, t)
}

// AddAttachment records a stored file reference on the task.
func (s *Tasks) AddAttachment(ctx context.Context, taskID, userID, ref string) (*models.TaskView, error) {
	if _, _, err := s.load(ctx, taskID, userID); err != nil {
		return nil, err
	}
	if err := s.tasks.AddAttachment(ctx, taskID, ref); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("Attachment added", zap.String("taskID", taskID), zap.String("ref", ref))
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, models.EventTaskUpdated, t)
}

// load fetches the task and its project and checks membership. A task whose
// project was deleted reports models.ErrProjectNotFound.
func (s *Tasks) load(ctx context.Context, taskID, userID string) (*models.Task, *models.Project, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.projects.GetProject(ctx, t.Project)
	if err != nil {
		return nil, nil, err
	}
	if err := access.AuthorizeMutation(access.EntityTask, p, userID); err != nil {
		return nil, nil, err
	}
	return t, p, nil
}

func (s *Tasks) publish(ctx context.Context, eventType string, t *models.Task) (*models.TaskView, error) {
	v, err := s.view(ctx, t)
	if err != nil {
		return nil, err
	}
	s.notifier.Publish(models.BoardEvent{Type: eventType, Project: t.Project, TaskID: t.ID, Task: v})
	return v, nil
}

func (s *Tasks) view(ctx context.Context, t *models.Task) (*models.TaskView, error) {
	views, err := taskViews(ctx, s.users, []models.Task{*t})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func taskViews(ctx context.Context, users repository.UserStore, list []models.Task) ([]models.TaskView, error) {
	var ids []string
	for _, t := range list {
		if t.Assignee != nil {
			ids = append(ids, *t.Assignee)
		}
	}
	summaries, err := users.UserSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.TaskView, 0, len(list))
	for _, t := range list {
		v := models.TaskView{
			ID:          t.ID,
			Project:     t.Project,
			Title:       t.Title,
			Description: t.Description,
			DueDate:     t.DueDate,
			Status:      t.Status,
			Comments:    t.Comments,
			Attachments: t.Attachments,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
		}
		if v.Comments == nil {
			v.Comments = []models.Comment{}
		}
		if v.Attachments == nil {
			v.Attachments = []string{}
		}
		if t.Assignee != nil {
			if u, ok := summaries[*t.Assignee]; ok {
				v.Assignee = &u
			}
		}
		out = append(out, v)
	}
	return out, nil
}

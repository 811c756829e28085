// Package repository defines the persistence contracts shared by the postgres,
// mongo and in-memory backends.
//
// Not-found conditions are reported with the sentinels in internal/models
// (ErrUserNotFound, ErrProjectNotFound, ErrTaskNotFound).
package repository

import (
	"context"

	"teamboard/internal/models"
)

// UserStore is the credential store.
type UserStore interface {
	// CreateUser fails with models.ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// ExistingUserIDs returns the subset of ids that belong to a user,
	// preserving input order and dropping duplicates.
	ExistingUserIDs(ctx context.Context, ids []string) ([]string, error)
	// UserSummaries resolves ids to name and email; unknown ids are absent.
	UserSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error)
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// ListProjectsForUser returns projects owned by or shared with userID in
	// insertion order.
	ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error)
	// UpdateProject writes name, description, members and updatedAt only if
	// the stored owner still equals ownerID.
	UpdateProject(ctx context.Context, p *models.Project, ownerID string) error
	// DeleteProject removes the project only if its owner equals ownerID.
	// Tasks of the project are left in place.
	DeleteProject(ctx context.Context, id, ownerID string) error
}

type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	// ListTasksByProject orders by creation time, oldest first.
	ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error)
	// UpdateTask writes the mutable fields: title, description, assignee,
	// dueDate, status and updatedAt.
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	AddComment(ctx context.Context, taskID string, c models.Comment) error
	AddAttachment(ctx context.Context, taskID, ref string) error
}

type Store interface {
	UserStore
	ProjectStore
	TaskStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

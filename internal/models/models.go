package models

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh identifier for users, projects, tasks and comments.
func NewID() string {
	return uuid.NewString()
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// UserSummary is the public projection of a user (name and email only).
type UserSummary struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Project is owned by exactly one user. The owner is never stored in Members
// but is always authorized.
type Project struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Owner       string    `json:"owner" bson:"owner"`
	Members     []string  `json:"members" bson:"members"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

// ProjectView is a project with owner and members populated.
type ProjectView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Owner       *UserSummary  `json:"owner"`
	Members     []UserSummary `json:"members"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "To Do"
	StatusInProgress TaskStatus = "In Progress"
	StatusDone       TaskStatus = "Done"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

type Comment struct {
	ID        string    `json:"id" bson:"id"`
	User      string    `json:"user" bson:"user"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type Task struct {
	ID          string     `json:"id" bson:"_id"`
	Project     string     `json:"project" bson:"project"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Assignee    *string    `json:"assignee,omitempty" bson:"assignee,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"due_date,omitempty"`
	Status      TaskStatus `json:"status" bson:"status"`
	Comments    []Comment  `json:"comments" bson:"comments"`
	Attachments []string   `json:"attachments" bson:"attachments"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`
}

// TaskView is a task with its assignee populated.
type TaskView struct {
	ID          string       `json:"id"`
	Project     string       `json:"project"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Assignee    *UserSummary `json:"assignee"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	Status      TaskStatus   `json:"status"`
	Comments    []Comment    `json:"comments"`
	Attachments []string     `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskDeleted   = "task.deleted"
	EventTaskCommented = "task.commented"

	EventProjectUpdated = "project.updated"
	EventProjectDeleted = "project.deleted"
)

// BoardEvent is pushed to the websocket subscribers of a project.
type BoardEvent struct {
	Type    string    `json:"type"`
	Project string    `json:"project"`
	TaskID  string    `json:"taskId,omitempty"`
	Task    *TaskView `json:"task,omitempty"`
	// Readers is the owner and members after a project event. Subscribers
	// outside it are disconnected.
	Readers []string  `json:"-"`
}

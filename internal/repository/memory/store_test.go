package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/internal/models"
)

func seedUser(t *testing.T, s *Store, id, name, email string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &models.User{ID: id, Name: name, Email: email}))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedUser(t, s, "u1", "Bob", "bob@example.com")
	seedUser(t, s, "u2", "Alice", "alice@example.com")

	err := s.CreateUser(ctx, &models.User{ID: "u3", Email: "BOB@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	u, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	ids, err := s.ExistingUserIDs(ctx, []string{"u2", "ghost", "u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, ids)

	summaries, err := s.UserSummaries(ctx, []string{"u1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "bob@example.com", summaries["u1"].Email)

	all, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Name)
}

func TestProjectsOwnerConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p1", Name: "Eng", Owner: "a", Members: []string{"b"}}))
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p2", Name: "Ops", Owner: "c"}))

	list, err := s.ListProjectsForUser(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)

	err = s.UpdateProject(ctx, &models.Project{ID: "p1", Name: "Hijacked"}, "b")
	assert.ErrorIs(t, err, models.ErrProjectNotFound)

	require.NoError(t, s.UpdateProject(ctx, &models.Project{ID: "p1", Name: "Engineering", Members: []string{"c"}}, "a"))
	p, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Engineering", p.Name)
	assert.Equal(t, "a", p.Owner)
	assert.Equal(t, []string{"c"}, p.Members)

	assert.ErrorIs(t, s.DeleteProject(ctx, "p1", "c"), models.ErrProjectNotFound)
	require.NoError(t, s.DeleteProject(ctx, "p1", "a"))
	_, err = s.GetProject(ctx, "p1")
	assert.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestReturnedProjectsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p1", Owner: "a", Members: []string{"b"}}))

	p, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	p.Members[0] = "mallory"

	again, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, again.Members)
}

func TestTasksOrderingAndOrphans(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateProject(ctx, &models.Project{ID: "p1", Owner: "a"}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t2", Project: "p1", Title: "second", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t1", Project: "p1", Title: "first", CreatedAt: base}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t3", Project: "p1", Title: "third", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "x", Project: "p2", Title: "other", CreatedAt: base}))

	tasks, err := s.ListTasksByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})

	require.NoError(t, s.DeleteProject(ctx, "p1", "a"))
	orphan, err := s.GetTask(ctx, "t1")
	require.NoError(t, err, "deleting a project leaves its tasks")
	assert.Equal(t, "p1", orphan.Project)
}

func TestTaskMutations(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()
	require.NoError(t, s.CreateTask(ctx, &models.Task{ID: "t1", Project: "p1", Title: "draft", Status: models.StatusTodo, CreatedAt: now}))

	assignee := "u1"
	require.NoError(t, s.UpdateTask(ctx, &models.Task{ID: "t1", Project: "ignored", Title: "final", Status: models.StatusDone, Assignee: &assignee}))
	require.NoError(t, s.AddComment(ctx, "t1", models.Comment{ID: "c1", User: "u1", Text: "first"}))
	require.NoError(t, s.AddComment(ctx, "t1", models.Comment{ID: "c2", User: "u1", Text: "second"}))
	require.NoError(t, s.AddAttachment(ctx, "t1", "/api/uploads/a.pdf"))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, "p1", got.Project, "project reference is immutable")
	assert.Equal(t, models.StatusDone, got.Status)
	require.NotNil(t, got.Assignee)
	assert.Equal(t, "u1", *got.Assignee)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "second", got.Comments[1].Text)
	assert.Equal(t, []string{"/api/uploads/a.pdf"}, got.Attachments)

	require.NoError(t, s.DeleteTask(ctx, "t1"))
	assert.ErrorIs(t, s.DeleteTask(ctx, "t1"), models.ErrTaskNotFound)
	assert.ErrorIs(t, s.UpdateTask(ctx, &models.Task{ID: "t1"}), models.ErrTaskNotFound)
	assert.ErrorIs(t, s.AddComment(ctx, "t1", models.Comment{}), models.ErrTaskNotFound)
}

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/internal/models"
	"teamboard/internal/repository"
	"teamboard/internal/repository/memory"
)

func setupCache(t *testing.T) (*Store, *memory.Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mem := memory.New()
	return New(mem, client, time.Hour), mem, mr
}

func seedTask(t *testing.T, s *Store) *models.Task {
	now := time.Now().UTC()
	task := &models.Task{ID: "t1", Project: "p1", Title: "cached", Status: models.StatusTodo, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func TestGetTaskPopulatesCache(t *testing.T) {
	s, _, mr := setupCache(t)
	seedTask(t, s)

	got, err := s.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Title)
	assert.True(t, mr.Exists("task:t1"))
	assert.Equal(t, time.Hour, mr.TTL("task:t1"))
}

func TestGetTaskServesFromCache(t *testing.T) {
	s, mem, _ := setupCache(t)
	seedTask(t, s)
	ctx := context.Background()

	_, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)

	// Bypass the decorator so only the backing store changes.
	require.NoError(t, mem.UpdateTask(ctx, &models.Task{ID: "t1", Title: "changed", Status: models.StatusDone}))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Title)
}

func TestWritesInvalidateTask(t *testing.T) {
	s, _, mr := setupCache(t)
	task := seedTask(t, s)
	ctx := context.Background()

	_, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, s.AddComment(ctx, "t1", models.Comment{ID: "c1", User: "u1", Text: "hi"}))
	assert.False(t, mr.Exists("task:t1"))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)

	task.Title = "renamed"
	require.NoError(t, s.UpdateTask(ctx, task))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, s.DeleteTask(ctx, "t1"))
	_, err = s.GetTask(ctx, "t1")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestProjectInvalidation(t *testing.T) {
	s, _, mr := setupCache(t)
	ctx := context.Background()
	now := time.Now().UTC()
	p := &models.Project{ID: "p1", Name: "Board", Owner: "u1", Members: []string{}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateProject(ctx, p))

	_, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("project:p1"))

	p.Name = "Renamed"
	require.NoError(t, s.UpdateProject(ctx, p, "u1"))
	assert.False(t, mr.Exists("project:p1"))

	got, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, s.DeleteProject(ctx, "p1", "u1"))
	_, err = s.GetProject(ctx, "p1")
	assert.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestRedisDownFallsThrough(t *testing.T) {
	s, _, mr := setupCache(t)
	seedTask(t, s)
	mr.Close()

	got, err := s.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Title)
}

// pausedStore holds the first GetProject after it has read the backing
// store, until release is closed.
type pausedStore struct {
	repository.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausedStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	got, err := p.Store.GetProject(ctx, id)
	p.once.Do(func() {
		close(p.loaded)
		<-p.release
	})
	return got, err
}

func TestReadOverlappingWriteDoesNotCacheStaleProject(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mem := memory.New()
	paused := &pausedStore{Store: mem, loaded: make(chan struct{}), release: make(chan struct{})}
	s := New(paused, client, time.Hour)
	ctx := context.Background()

	now := time.Now().UTC()
	p := &models.Project{ID: "p1", Name: "Board", Owner: "alice", Members: []string{"bob"}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, mem.CreateProject(ctx, p))

	read := make(chan *models.Project, 1)
	go func() {
		got, err := s.GetProject(ctx, "p1")
		assert.NoError(t, err)
		read <- got
	}()
	<-paused.loaded

	// bob is removed while the read above still holds the old record
	p.Members = []string{}
	require.NoError(t, s.UpdateProject(ctx, p, "alice"))
	close(paused.release)

	stale := <-read
	assert.Equal(t, []string{"bob"}, stale.Members)
	assert.False(t, mr.Exists("project:p1"))

	got, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, got.Members)
	assert.True(t, mr.Exists("project:p1"))
}

func TestInvalidationBumpsGeneration(t *testing.T) {
	s, _, mr := setupCache(t)
	task := seedTask(t, s)
	ctx := context.Background()

	task.Title = "renamed"
	require.NoError(t, s.UpdateTask(ctx, task))
	require.NoError(t, s.UpdateTask(ctx, task))

	gen, err := mr.Get("task:t1:gen")
	require.NoError(t, err)
	assert.Equal(t, "2", gen)
	assert.Equal(t, genTTL, mr.TTL("task:t1:gen"))
}

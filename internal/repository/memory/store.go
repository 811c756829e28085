// Package memory is an in-process Store used for DB_DRIVER=memory and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"teamboard/internal/models"
	"teamboard/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	users       map[string]*models.User
	usersByMail map[string]string
	userOrder   []string

	projects     map[string]*models.Project
	projectOrder []string

	tasks   map[string]*models.Task
	taskSeq map[string]int
	nextSeq int
}

func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		usersByMail: make(map[string]string),
		projects:    make(map[string]*models.Project),
		tasks:       make(map[string]*models.Task),
		taskSeq:     make(map[string]int),
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.usersByMail[key]; ok {
		return models.ErrEmailTaken
	}
	cp := *u
	s.users[u.ID] = &cp
	s.usersByMail[key] = u.ID
	s.userOrder = append(s.userOrder, u.ID)
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMail[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) ExistingUserIDs(_ context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := s.users[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) UserSummaries(_ context.Context, ids []string) (map[string]models.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func (s *Store) ListUsers(context.Context) ([]models.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserSummary, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id].Summary())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Projects

func (s *Store) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = cloneProject(p)
	s.projectOrder = append(s.projectOrder, p.ID)
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return cloneProject(p), nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID string) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Project, 0)
	for _, id := range s.projectOrder {
		p := s.projects[id]
		if p.Owner == userID || contains(p.Members, userID) {
			out = append(out, *cloneProject(p))
		}
	}
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p *models.Project, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[p.ID]
	if !ok || cur.Owner != ownerID {
		return models.ErrProjectNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Members = append([]string(nil), p.Members...)
	cur.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.projects[id]
	if !ok || cur.Owner != ownerID {
		return models.ErrProjectNotFound
	}
	delete(s.projects, id)
	for i, pid := range s.projectOrder {
		if pid == id {
			s.projectOrder = append(s.projectOrder[:i], s.projectOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Tasks

func (s *Store) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = cloneTask(t)
	s.nextSeq++
	s.taskSeq[t.ID] = s.nextSeq
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, models.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *Store) ListTasksByProject(_ context.Context, projectID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0)
	for _, t := range s.tasks {
		if t.Project == projectID {
			out = append(out, *cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.taskSeq[out[i].ID] < s.taskSeq[out[j].ID]
	})
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[t.ID]
	if !ok {
		return models.ErrTaskNotFound
	}
	upd := cloneTask(t)
	cur.Title = upd.Title
	cur.Description = upd.Description
	cur.Assignee = upd.Assignee
	cur.DueDate = upd.DueDate
	cur.Status = upd.Status
	cur.UpdatedAt = upd.UpdatedAt
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return models.ErrTaskNotFound
	}
	delete(s.tasks, id)
	delete(s.taskSeq, id)
	return nil
}

func (s *Store) AddComment(_ context.Context, taskID string, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return models.ErrTaskNotFound
	}
	t.Comments = append(t.Comments, c)
	return nil
}

func (s *Store) AddAttachment(_ context.Context, taskID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return models.ErrTaskNotFound
	}
	t.Attachments = append(t.Attachments, ref)
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	cp.Members = append([]string{}, p.Members...)
	return &cp
}

func cloneTask(t *models.Task) *models.Task {
	cp := *t
	if t.Assignee != nil {
		a := *t.Assignee
		cp.Assignee = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		cp.DueDate = &d
	}
	cp.Comments = append([]models.Comment{}, t.Comments...)
	cp.Attachments = append([]string{}, t.Attachments...)
	return &cp
}

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

type CreateProjectInput struct {
	Name        string
	Description string
	Members     []string
}

// ProjectPatch applies only the non-nil fields. Members replaces the whole set.
type ProjectPatch struct {
	Name        *string
	Description *string
	Members     *[]string
}

// Projects publishes a project event after every update or delete so open
// board feeds can drop users who lost access.
type Projects struct {
	users    repository.UserStore
	projects repository.ProjectStore
	notifier Notifier
	now      func() time.Time
}

func NewProjects(users repository.UserStore, projects repository.ProjectStore, notifier Notifier) *Projects {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Projects{users: users, projects: projects, notifier: notifier, now: time.Now}
}

func (s *Projects) Create(ctx context.Context, ownerID string, in CreateProjectInput) (*models.ProjectView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.Invalid("Project name is required")
	}
	// member yang tidak terdaftar dibuang tanpa error
	members, err := filterMembers(ctx, s.users, ownerID, in.Members)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Project{
		ID:          models.NewID(),
		Name:        name,
		Description: in.Description,
		Owner:       ownerID,
		Members:     members,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("Project created", zap.String("projectID", p.ID), zap.String("owner", ownerID))
	return s.view(ctx, p)
}

func (s *Projects) ListForUser(ctx context.Context, userID string) ([]models.ProjectView, error) {
	list, err := s.projects.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return projectViews(ctx, s.users, list)
}

func (s *Projects) Get(ctx context.Context, projectID, userID string) (*models.ProjectView, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeRead(p, userID); err != nil {
		return nil, err
	}
	return s.view(ctx, p)
}

// Update is owner-only. The write is conditional on the owner so a concurrent
// ownership change cannot be overwritten.
func (s *Projects) Update(ctx context.Context, projectID, userID string, patch ProjectPatch) (*models.ProjectView, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	// hanya owner yang boleh mengubah project
	if err := access.AuthorizeMutation(access.EntityProject, p, userID); err != nil {
		logger.SecurityLogger.Warn("Project update denied", zap.String("projectID", projectID), zap.String("userID", userID))
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, models.Invalid("Project name is required")
		}
		p.Name = name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Members != nil {
		members, err := filterMembers(ctx, s.users, p.Owner, *patch.Members)
		if err != nil {
			return nil, err
		}
		p.Members = members
	}
	p.UpdatedAt = s.now()

	// simpan hanya jika user masih owner
	if err := s.projects.UpdateProject(ctx, p, userID); err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("Project updated", zap.String("projectID", p.ID))

	readers := append([]string{p.Owner}, p.Members...)
	s.notifier.Publish(models.BoardEvent{Type: models.EventProjectUpdated, Project: p.ID, Readers: readers})
	return s.view(ctx, p)
}

// Delete is owner-only. Tasks of the project are not removed.
func (s *Projects) Delete(ctx context.Context, projectID, userID string) error {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := access.AuthorizeMutation(access.EntityProject, p, userID); err != nil {
		logger.SecurityLogger.Warn("Project delete denied", zap.String("projectID", projectID), zap.String("userID", userID))
		return err
	}
	if err := s.projects.DeleteProject(ctx, projectID, userID); err != nil {
		return err
	}
	logger.AuditLogger.Info("Project deleted", zap.String("projectID", projectID))

	// tidak ada lagi yang boleh membaca board ini
	s.notifier.Publish(models.BoardEvent{Type: models.EventProjectDeleted, Project: projectID})
	return nil
}

func (s *Projects) view(ctx context.Context, p *models.Project) (*models.ProjectView, error) {
	views, err := projectViews(ctx, s.users, []models.Project{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// filterMembers keeps the requested ids that belong to a user, in request
// order, without duplicates or the owner. Unknown ids are dropped without an
// error and reported to the audit log.
func filterMembers(ctx context.Context, users repository.UserStore, ownerID string, requested []string) ([]string, error) {
	candidates := make([]string, 0, len(requested))
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if id == "" || id == ownerID {
			continue
		}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return []string{}, nil
	}

	existing, err := users.ExistingUserIDs(ctx, candidates)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	var dropped []string
	for _, id := range candidates {
		if !known[id] {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		logger.AuditLogger.Info("Dropped unknown project members", zap.Strings("ids", dropped))
	}
	return existing, nil
}

func projectViews(ctx context.Context, users repository.UserStore, list []models.Project) ([]models.ProjectView, error) {
	var ids []string
	for _, p := range list {
		ids = append(ids, p.Owner)
		ids = append(ids, p.Members...)
	}
	summaries, err := users.UserSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ProjectView, 0, len(list))
	for _, p := range list {
		v := models.ProjectView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Members:     make([]models.UserSummary, 0, len(p.Members)),
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}
		if owner, ok := summaries[p.Owner]; ok {
			v.Owner = &owner
		}
		for _, m := range p.Members {
			if u, ok := summaries[m]; ok {
				v.Members = append(v.Members, u)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

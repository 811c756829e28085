// Package postgres implements repository.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"teamboard/internal/models"
	"teamboard/internal/repository"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password, created_at, updated_at FROM users WHERE "+where,
		arg,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "lower(email) = lower($1)", email)
}

func (s *Store) ExistingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(found))
	for _, id := range ids {
		if found[id] {
			out = append(out, id)
			delete(found, id)
		}
	}
	return out, nil
}

func (s *Store) scanSummaries(rows *sql.Rows) ([]models.UserSummary, error) {
	defer rows.Close()

	out := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UserSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	out := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email FROM users WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	list, err := s.scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email FROM users ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return s.scanSummaries(rows)
}

// Projects

const projectColumns = "id, name, description, owner_id, members, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, pq.Array(&p.Members), &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Members == nil {
		p.Members = []string{}
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (id, name, description, owner_id, members, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		p.ID, p.Name, p.Description, p.Owner, pq.Array(orEmpty(p.Members)), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("select project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE owner_id = $1 OR $1 = ANY(members) ORDER BY seq",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = $3, description = $4, members = $5, updated_at = $6 WHERE id = $1 AND owner_id = $2",
		p.ID, ownerID, p.Name, p.Description, pq.Array(orEmpty(p.Members)), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectOne(res, models.ErrProjectNotFound)
}

func (s *Store) DeleteProject(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectOne(res, models.ErrProjectNotFound)
}

// orEmpty keeps nil slices from being written as NULL into NOT NULL arrays.
func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Tasks

const taskColumns = "id, project_id, title, description, assignee_id, due_date, status, attachments, created_at, updated_at"

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t        models.Task
		assignee sql.NullString
		due      sql.NullTime
		status   string
	)
	err := row.Scan(&t.ID, &t.Project, &t.Title, &t.Description, &assignee, &due, &status,
		pq.Array(&t.Attachments), &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		t.Assignee = &assignee.String
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
	t.Status = models.TaskStatus(status)
	t.Comments = []models.Comment{}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		t.ID, t.Project, t.Title, t.Description, t.Assignee, t.DueDate, string(t.Status),
		pq.Array(orEmpty(t.Attachments)), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTaskNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	if err := s.loadComments(ctx, []*models.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE project_id = $1 ORDER BY created_at ASC, seq ASC",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadComments(ctx, tasks); err != nil {
		return nil, err
	}

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (s *Store) loadComments(ctx context.Context, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[string]*models.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, id, user_id, text, created_at FROM task_comments WHERE task_id = ANY($1) ORDER BY seq",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID string
			c      models.Comment
		)
		if err := rows.Scan(&taskID, &c.ID, &c.User, &c.Text, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Comments = append(t.Comments, c)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET title = $2, description = $3, assignee_id = $4, due_date = $5, status = $6, updated_at = $7 WHERE id = $1",
		t.ID, t.Title, t.Description, t.Assignee, t.DueDate, string(t.Status), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectOne(res, models.ErrTaskNotFound)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectOne(res, models.ErrTaskNotFound)
}

func (s *Store) AddComment(ctx context.Context, taskID string, c models.Comment) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_comments (id, task_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, taskID, c.User, c.Text, c.CreatedAt,
	)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return models.ErrTaskNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Store) AddAttachment(ctx context.Context, taskID, ref string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET attachments = array_append(attachments, $2), updated_at = now() WHERE id = $1",
		taskID, ref,
	)
	if err != nil {
		return fmt.Errorf("append attachment: %w", err)
	}
	return expectOne(res, models.ErrTaskNotFound)
}

// Package mongodb implements repository.Store on MongoDB. Comments and
// attachments are embedded in the task document.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"teamboard/internal/models"
	"teamboard/internal/repository"
)

const (
	usersCollection    = "users"
	projectsCollection = "projects"
	tasksCollection    = "tasks"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	client   *mongo.Client
	users    *mongo.Collection
	projects *mongo.Collection
	tasks    *mongo.Collection
}

// userDoc stores a lower-cased copy of the email so the unique index is
// case-insensitive.
type userDoc struct {
	models.User `bson:",inline"`
	EmailKey    string `bson:"email_key"`
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		users:    db.Collection(usersCollection),
		projects: db.Collection(projectsCollection),
		tasks:    db.Collection(tasksCollection),
	}
}

// EnsureIndexes creates the indexes the store relies on. Idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = s.projects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("projects index: %w", err)
	}
	_, err = s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("tasks index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{User: *u, EmailKey: strings.ToLower(u.Email)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &doc.User, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email_key": strings.ToLower(email)})
}

func (s *Store) findSummaries(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.UserSummary, error) {
	opts = append(opts, options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "email": 1}))
	cur, err := s.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out := []models.UserSummary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return out, nil
}

func (s *Store) ExistingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	found, err := s.findSummaries(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(found))
	for _, u := range found {
		exists[u.ID] = true
	}
	out := make([]string, 0, len(found))
	for _, id := range ids {
		if exists[id] {
			out = append(out, id)
			delete(exists, id)
		}
	}
	return out, nil
}

func (s *Store) UserSummaries(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	out := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := s.findSummaries(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return s.findSummaries(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	doc := *p
	doc.Members = orEmpty(p.Members)
	if _, err := s.projects.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	p.Members = orEmpty(p.Members)
	return &p, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	filter := bson.M{"$or": bson.A{bson.M{"owner": userID}, bson.M{"members": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.projects.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	out := []models.Project{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	for i := range out {
		out[i].Members = orEmpty(out[i].Members)
	}
	return out, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project, ownerID string) error {
	res, err := s.projects.UpdateOne(ctx,
		bson.M{"_id": p.ID, "owner": ownerID},
		bson.M{"$set": bson.M{
			"name":        p.Name,
			"description": p.Description,
			"members":     orEmpty(p.Members),
			"updated_at":  p.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id, ownerID string) error {
	res, err := s.projects.DeleteOne(ctx, bson.M{"_id": id, "owner": ownerID})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

// Tasks

func normalizeTask(t *models.Task) {
	if t.Comments == nil {
		t.Comments = []models.Comment{}
	}
	if t.Attachments == nil {
		t.Attachments = []string{}
	}
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	doc := *t
	normalizeTask(&doc)
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	normalizeTask(&t)
	return &t, nil
}

func (s *Store) ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.tasks.Find(ctx, bson.M{"project": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	out := []models.Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	for i := range out {
		normalizeTask(&out[i])
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	set := bson.M{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"updated_at":  t.UpdatedAt,
	}
	unset := bson.M{}
	if t.Assignee != nil {
		set["assignee"] = *t.Assignee
	} else {
		unset["assignee"] = ""
	}
	if t.DueDate != nil {
		set["due_date"] = *t.DueDate
	} else {
		unset["due_date"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": t.ID}, update)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

func (s *Store) push(ctx context.Context, taskID, field string, value interface{}) error {
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": taskID}, bson.M{"$push": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("push %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrTaskNotFound
	}
	return nil
}

func (s *Store) AddComment(ctx context.Context, taskID string, c models.Comment) error {
	return s.push(ctx, taskID, "comments", c)
}

func (s *Store) AddAttachment(ctx context.Context, taskID, ref string) error {
	return s.push(ctx, taskID, "attachments", ref)
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

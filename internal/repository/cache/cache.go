// Package cache wraps a repository.Store with a redis read-through cache for
// single task and project lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"teamboard/internal/models"
	"teamboard/internal/repository"
	"teamboard/pkg/logger"
)

var _ repository.Store = (*Store)(nil)

// Store caches GetTask and GetProject. Every write through it bumps the key's
// generation and drops the key; a read only fills the cache if the generation
// it saw before loading is still current. Redis failures are logged and fall
// through to the wrapped store.
type Store struct {
	repository.Store
	client *redis.Client
	ttl    time.Duration
}

func New(next repository.Store, client *redis.Client, ttl time.Duration) *Store {
	return &Store{Store: next, client: client, ttl: ttl}
}

// genTTL bounds how long an idle generation counter is kept.
const genTTL = 24 * time.Hour

var errStale = errors.New("cache: key invalidated during read")

func taskKey(id string) string    { return fmt.Sprintf("task:%s", id) }
func projectKey(id string) string { return fmt.Sprintf("project:%s", id) }
func genKey(key string) string    { return key + ":gen" }

func (s *Store) load(ctx context.Context, key string, dst interface{}) bool {
	cached, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.ErrorLogger.Error("Redis get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(cached, dst); err != nil {
		logger.ErrorLogger.Error("Corrupt cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// generation returns the invalidation counter of key. A missing counter is
// zero. ok is false when redis could not be read.
func (s *Store) generation(ctx context.Context, key string) (gen int64, ok bool) {
	gen, err := s.client.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logger.ErrorLogger.Error("Redis get failed", zap.String("key", genKey(key)), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// save stores v under key unless a write bumped the generation after gen was
// read.
func (s *Store) save(ctx context.Context, key string, gen int64, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(key)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, genKey(key))
	switch {
	case err == nil, errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		// data lama tidak disimpan
	default:
		logger.ErrorLogger.Error("Redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) drop(ctx context.Context, key string) {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(key))
		pipe.Expire(ctx, genKey(key), genTTL)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		logger.ErrorLogger.Error("Redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// readThrough serves key from redis, otherwise loads it and fills the cache.
func (s *Store) readThrough(ctx context.Context, key string, dst interface{}, fetch func() (interface{}, error)) (interface{}, error) {
	if s.load(ctx, key, dst) {
		return dst, nil
	}
	// ambil generation sebelum membaca store
	gen, ok := s.generation(ctx, key)
	fresh, err := fetch()
	if err != nil {
		return nil, err
	}
	if ok {
		s.save(ctx, key, gen, fresh)
	}
	return fresh, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	v, err := s.readThrough(ctx, projectKey(id), &models.Project{}, func() (interface{}, error) {
		return s.Store.GetProject(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Project), nil
}

func (s *Store) UpdateProject(ctx context.Context, p *models.Project, ownerID string) error {
	err := s.Store.UpdateProject(ctx, p, ownerID)
	s.drop(ctx, projectKey(p.ID))
	return err
}

func (s *Store) DeleteProject(ctx context.Context, id, ownerID string) error {
	err := s.Store.DeleteProject(ctx, id, ownerID)
	s.drop(ctx, projectKey(id))
	return err
}

func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	v, err := s.readThrough(ctx, taskKey(id), &models.Task{}, func() (interface{}, error) {
		return s.Store.GetTask(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Task), nil
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	err := s.Store.UpdateTask(ctx, t)
	s.drop(ctx, taskKey(t.ID))
	return err
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	err := s.Store.DeleteTask(ctx, id)
	s.drop(ctx, taskKey(id))
	return err
}

func (s *Store) AddComment(ctx context.Context, taskID string, c models.Comment) error {
	err := s.Store.AddComment(ctx, taskID, c)
	s.drop(ctx, taskKey(taskID))
	return err
}

func (s *Store) AddAttachment(ctx context.Context, taskID, ref string) error {
	err := s.Store.AddAttachment(ctx, taskID, ref)
	s.drop(ctx, taskKey(taskID))
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return s.Store.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	cerr := s.client.Close()
	if err := s.Store.Close(ctx); err != nil {
		return err
	}
	return cerr
}

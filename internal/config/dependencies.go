// Package config wires the configured store, cache, session issuer and
// services into one container that the API layer receives explicitly.
package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"teamboard/configs"
	"teamboard/internal/auth"
	"teamboard/internal/repository"
	"teamboard/internal/repository/cache"
	"teamboard/internal/repository/memory"
	"teamboard/internal/repository/mongodb"
	"teamboard/internal/repository/postgres"
	"teamboard/internal/service"
	"teamboard/internal/websocket"
	"teamboard/pkg/database"
	"teamboard/pkg/logger"
)

type Dependencies struct {
	Config    configs.Config
	Store     repository.Store
	StoreName string
	Cached    bool
	Issuer    *auth.Issuer
	Validate  *validator.Validate
	Hub       *websocket.Hub

	Users    *service.Users
	Projects *service.Projects
	Tasks    *service.Tasks
}

// NewDependencies connects the primary store selected by DB_DRIVER and wraps
// it with the redis cache when REDIS_HOST is set. A redis failure only
// disables the cache; a primary store failure is returned.
func NewDependencies(ctx context.Context, cfg configs.Config) (*Dependencies, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cached := false
	if cfg.CacheEnabled() {
		client, err := database.ConnectRedis(ctx, cfg)
		if err != nil {
			logger.ErrorLogger.Error("Redis unavailable, running without cache", zap.Error(err))
		} else {
			store = cache.New(store, client, cfg.CacheTTL)
			cached = true
			logger.SystemLogger.Info("Redis cache enabled", zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	deps, err := Build(cfg, store)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	deps.Cached = cached
	return deps, nil
}

// Build assembles the container around an already opened store.
func Build(cfg configs.Config, store repository.Store) (*Dependencies, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		var err error
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		logger.SystemLogger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	if cfg.UploadDir != "" {
		if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}

	issuer := auth.NewIssuer(secret, cfg.TokenTTL)
	hub := websocket.NewHub()
	return &Dependencies{
		Config:    cfg,
		Store:     store,
		StoreName: cfg.DBDriver,
		Issuer:    issuer,
		Validate:  validator.New(),
		Hub:       hub,
		Users:     service.NewUsers(store, issuer),
		Projects:  service.NewProjects(store, store, hub),
		Tasks:     service.NewTasks(store, store, store, hub),
	}, nil
}

// NewMemoryDependencies is the container used by handler tests.
func NewMemoryDependencies(cfg configs.Config) (*Dependencies, error) {
	cfg.DBDriver = configs.DriverMemory
	return Build(cfg, memory.New())
}

func (d *Dependencies) Close(ctx context.Context) error {
	return d.Store.Close(ctx)
}

func openStore(ctx context.Context, cfg configs.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case configs.DriverPostgres:
		db, err := database.ConnectDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := postgres.CreateTableIfNotExists(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.SystemLogger.Info("Database Connected", zap.String("driver", cfg.DBDriver))
		return postgres.New(db), nil
	case configs.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := mongodb.New(client, cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		logger.SystemLogger.Info("Database Connected", zap.String("driver", cfg.DBDriver))
		return store, nil
	case configs.DriverMemory:
		logger.SystemLogger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

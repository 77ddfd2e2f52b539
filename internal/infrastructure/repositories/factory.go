package repositories

import (
	"context"
	"database/sql"

	"tagfall/internal/core/ports"
	"tagfall/internal/infrastructure/repositories/memory"
	redisrepo "tagfall/internal/infrastructure/repositories/redis"
	sqliterepo "tagfall/internal/infrastructure/repositories/sqlite"
	"tagfall/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories for the configured storage backend
// with fallback support: an unreachable Redis or an unopenable database file
// degrades to memory repositories instead of refusing to start.
type RepositoryFactory struct {
	backend     string
	redisClient *redis.Client
	sqliteDB    *sql.DB
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend: cfg.Storage.Backend,
		logger:  logger,
	}

	switch cfg.Storage.Backend {
	case "redis":
		client, err := redisrepo.NewRedisClient(
			cfg.Storage.Redis.Address,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.backend = "memory"
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}

	case "sqlite":
		db, err := sqliterepo.Open(cfg.Storage.Sqlite.Path, logger)
		if err != nil {
			logger.Warnw("failed to open sqlite database, falling back to memory repositories",
				"path", cfg.Storage.Sqlite.Path,
				"error", err,
			)
			factory.backend = "memory"
		} else {
			factory.sqliteDB = db
			logger.Info("using sqlite repositories")
		}
	}

	if factory.backend == "memory" {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateContentRepository creates the tag-scoped content log repository.
func (f *RepositoryFactory) CreateContentRepository() ports.ContentRepository {
	switch {
	case f.backend == "redis" && f.redisClient != nil:
		return redisrepo.NewRedisContentRepository(f.redisClient)
	case f.backend == "sqlite" && f.sqliteDB != nil:
		return sqliterepo.NewSqliteContentRepository(f.sqliteDB)
	default:
		return memory.NewMemoryContentRepository()
	}
}

// CreateModerationRepository creates the moderation action and block list repository.
func (f *RepositoryFactory) CreateModerationRepository() ports.ModerationRepository {
	switch {
	case f.backend == "redis" && f.redisClient != nil:
		return redisrepo.NewRedisModerationRepository(f.redisClient)
	case f.backend == "sqlite" && f.sqliteDB != nil:
		return sqliterepo.NewSqliteModerationRepository(f.sqliteDB)
	default:
		return memory.NewMemoryModerationRepository()
	}
}

// CreateQueueRepository creates the speaker queue repository.
func (f *RepositoryFactory) CreateQueueRepository() ports.QueueRepository {
	switch {
	case f.backend == "redis" && f.redisClient != nil:
		return redisrepo.NewRedisQueueRepository(f.redisClient)
	case f.backend == "sqlite" && f.sqliteDB != nil:
		return sqliterepo.NewSqliteQueueRepository(f.sqliteDB)
	default:
		return memory.NewMemoryQueueRepository()
	}
}

// Close releases the backend connection if one is held.
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.sqliteDB != nil {
		return f.sqliteDB.Close()
	}
	return nil
}

// HealthCheck checks the storage backend health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	if f.sqliteDB != nil {
		return f.sqliteDB.PingContext(ctx)
	}
	return nil
}

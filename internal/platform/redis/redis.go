package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/digest-api/internal/config"
	"github.com/phrazzld/digest-api/internal/task"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// lockClient is the subset of goredis.Cmdable the Locker uses.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// Locker grants short leases on keys. Each Locker has its own owner ID, so
// a replica that already holds a key re-acquires it and extends the lease.
type Locker struct {
	client lockClient
	owner  string
	logger *slog.Logger
}

var _ task.Locker = (*Locker)(nil)

// NewLocker creates a Locker backed by client.
func NewLocker(client goredis.Cmdable, logger *slog.Logger) *Locker {
	return newLocker(client, uuid.NewString(), logger)
}

func newLocker(client lockClient, owner string, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{
		client: client,
		owner:  owner,
		logger: logger.With(slog.String("component", "redis_locker")),
	}
}

// TryLock attempts to take key for ttl. It reports false when another owner
// holds the key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	current, err := l.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("failed to read lock %s: %w", key, err)
	}
	if current != l.owner {
		return false, nil
	}

	if err := l.client.Expire(ctx, key, ttl).Err(); err != nil {
		l.logger.WarnContext(ctx, "failed to extend lock", slog.String("key", key), slog.String("error", err.Error()))
	}
	return true, nil
}

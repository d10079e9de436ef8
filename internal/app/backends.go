// Package app connects the infrastructure the gateway and its tools share.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bankdash/bankdash/backend/go-gateway/internal/config"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/database"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/sessions"
	"github.com/bankdash/bankdash/backend/go-gateway/internal/storage"
	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

const mongoConnectAttempts = 5

// Backends holds the connected stores. Close releases whatever was opened.
type Backends struct {
	Redis       *redis.Client
	Persistent  storage.Store
	Revocations sessions.Revocations
	closers     []func()
}

// Watcher returns the persistent store's change feed, or nil when it has none.
func (b *Backends) Watcher() storage.Watcher {
	w, _ := b.Persistent.(storage.Watcher)
	return w
}

func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// ConnectRedis returns a client when Redis is configured and answers PING.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr() == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s): %v", cfg.Addr(), err)
		_ = client.Close()
		return nil
	}
	logger.Infof("connected to Redis: %s", cfg.Addr())
	return client
}

// Open connects the persistent store selected by cfg.Storage.Backend and the
// revocation list. rdb may be nil; a nil Redis forces memory revocations.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Backends, error) {
	b := &Backends{Redis: rdb}

	switch cfg.Storage.Backend {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("storage backend redis: Redis unavailable at %s", cfg.Redis.Addr())
		}
		b.Persistent = storage.NewRedisStore(rdb, cfg.Storage.Prefix)
	case "mongo":
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, fmt.Errorf("storage backend mongo: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
		b.Persistent = storage.NewMongoStore(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
	case "minio":
		st, err := storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
			Prefix:    cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("storage backend minio: %w", err)
		}
		b.Persistent = st
	default:
		b.Persistent = storage.NewMemoryStore()
	}

	if rdb != nil {
		b.Revocations = sessions.NewRedisRevocations(rdb, cfg.Storage.Prefix+"revoked:")
	} else {
		b.Revocations = sessions.NewMemoryRevocations()
	}
	logger.Infof("persistent store: %s (change feed: %t)", cfg.Storage.Backend, b.Watcher() != nil)
	return b, nil
}

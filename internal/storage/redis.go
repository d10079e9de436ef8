package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bankdash/bankdash/backend/go-gateway/pkg/logger"
)

// RedisStore keeps values under "<prefix><key>" and publishes every write on
// "<prefix>changes" so other processes sharing the instance can follow along.
type RedisStore struct {
	client *redis.Client
	prefix string
	origin string
}

// NewRedisStore creates a Redis-backed store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "bankdash:"
	}
	return &RedisStore{client: client, prefix: prefix, origin: uuid.NewString()}
}

// Origin identifies this store instance on the change channel.
func (r *RedisStore) Origin() string { return r.origin }

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) channel() string { return r.prefix + "changes" }

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return err
	}
	r.publish(ctx, Change{Key: key, Value: value, Origin: r.origin})
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return err
	}
	for _, k := range keys {
		r.publish(ctx, Change{Key: k, Origin: r.origin})
	}
	return nil
}

func (r *RedisStore) publish(ctx context.Context, c Change) {
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.channel(), b).Err(); err != nil {
		logger.Warnf("storage: publish change for %s failed: %v", c.Key, err)
	}
}

// Watch subscribes to changes published by other RedisStore instances; own writes are skipped.
func (r *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan Change, watchBuffer)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					logger.Warnf("storage: dropping malformed change payload: %v", err)
					continue
				}
				if c.Origin == r.origin {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

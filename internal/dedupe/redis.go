package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Filter remembers client-supplied event ids for a while so a pixel that
// fires twice records one event.
type Filter interface {
	// Seen marks key and reports whether it was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Forget unmarks key, used when the event it guarded was not stored.
	Forget(ctx context.Context, key string) error
}

// Noop never reports duplicates.
type Noop struct{}

func (Noop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Noop) Forget(context.Context, string) error       { return nil }

type RedisFilter struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisFilter connects to rawURL (redis://...) and checks it answers.
func NewRedisFilter(ctx context.Context, rawURL string, ttl time.Duration) (*RedisFilter, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFilterFromClient(client, ttl), nil
}

func NewRedisFilterFromClient(client *redis.Client, ttl time.Duration) *RedisFilter {
	return &RedisFilter{client: client, ttl: ttl, prefix: "tracker:eid:"}
}

func (r *RedisFilter) Seen(ctx context.Context, key string) (bool, error) {
	wasSet, err := r.client.SetNX(ctx, r.prefix+key, "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !wasSet, nil
}

func (r *RedisFilter) Forget(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisFilter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisFilter) Close() error {
	return r.client.Close()
}

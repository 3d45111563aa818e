package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries as plain byte values and maintains one set per tag
// holding the keys it covers. SET is atomic, so concurrent writers for the
// same key keep last-writer-wins semantics.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, tags []string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, r.ttl)
	for _, tag := range tags {
		tagKey := tagSetKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		if r.ttl > 0 {
			// Tag sets outlive their newest member slightly; stale keys
			// in the set are deleted harmlessly on invalidation.
			pipe.Expire(ctx, tagKey, r.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateTag evicts every entry whose key is in the tag's set, then the
// set itself.
func (r *Redis) InvalidateTag(ctx context.Context, tag string) error {
	tagKey := tagSetKey(tag)
	keys, err := r.client.SMembers(ctx, tagKey).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, tagKey).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func tagSetKey(tag string) string {
	return "pluck:tag:" + tag
}

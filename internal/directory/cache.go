package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"leavedesk/internal/repo"
)

// Cache stores the serialized directory between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NoCache always misses.
type NoCache struct{}

func (NoCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NoCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoCache) Delete(context.Context, string) error                     { return nil }

// SQLiteCache keeps entries in the local store's directory_cache table.
type SQLiteCache struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (c SQLiteCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.Repo.GetDirectory(ctx, key, c.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c SQLiteCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.Repo.PutDirectory(ctx, key, val, c.now().Add(ttl))
}

func (c SQLiteCache) Delete(ctx context.Context, key string) error {
	return c.Repo.DeleteDirectory(ctx, key)
}

// RedisCache shares the directory between view API instances.
type RedisCache struct {
	Client *redis.Client
	Prefix string
}

func (c RedisCache) key(k string) string {
	if c.Prefix == "" {
		return "leavedesk:" + k
	}
	return c.Prefix + k
}

func (c RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.Client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.Client.Set(ctx, c.key(key), val, ttl).Err()
}

func (c RedisCache) Delete(ctx context.Context, key string) error {
	return c.Client.Del(ctx, c.key(key)).Err()
}

// OpenRedis connects and pings within five seconds.
func OpenRedis(addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

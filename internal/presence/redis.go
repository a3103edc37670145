package presence

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultKey = "presence:online"

// RedisRegistry backs the presence set with a shared Redis set so multiple
// service instances observe the same online list.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisRegistry constructs a registry from a Redis URL.
func NewRedisRegistry(url string) (*RedisRegistry, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisRegistry{client: c, key: defaultKey}, nil
}

var _ Registry = (*RedisRegistry)(nil)

func (r *RedisRegistry) Add(ctx context.Context, userID string) error {
	return r.client.SAdd(ctx, r.key, userID).Err()
}

func (r *RedisRegistry) Remove(ctx context.Context, userID string) error {
	return r.client.SRem(ctx, r.key, userID).Err()
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.key).Result()
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

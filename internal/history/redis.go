package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore provides Redis-backed persistence for run history.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration // retention window for runs
}

// NewRedisStore creates a new Redis storage backend. Returns an error if
// the connection fails.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisStore{
		client: client,
		key:    "sg:history:runs",
		ttl:    ttl,
	}, nil
}

// Save records a run in a sorted set scored by timestamp and trims runs
// older than the retention window.
func (rs *RedisStore) Save(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	pipe := rs.client.Pipeline()
	pipe.ZAdd(ctx, rs.key, redis.Z{
		Score:  float64(run.Timestamp.Unix()),
		Member: string(data),
	})

	minScore := time.Now().Add(-rs.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, rs.key, "-inf", fmt.Sprintf("%d", minScore))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (rs *RedisStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	members, err := rs.client.ZRevRange(ctx, rs.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	runs := make([]Run, 0, len(members))
	for _, member := range members {
		var run Run
		if err := json.Unmarshal([]byte(member), &run); err != nil {
			continue // skip entries that no longer decode
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

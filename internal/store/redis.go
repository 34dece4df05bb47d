package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeen keeps one expiring key per delivered revision, so the ledger
// survives restarts and is shared by every replica.
type RedisSeen struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSeen(opts *redis.Options, prefix string, ttl time.Duration) *RedisSeen {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisSeen{rdb: redis.NewClient(opts), prefix: prefix, ttl: ttl}
}

func (r *RedisSeen) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisSeen) Filter(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Exists(ctx, r.prefix+k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("seen filter: %w", err)
	}
	out := make([]string, 0, len(keys))
	for i, c := range cmds {
		if c.Val() == 0 {
			out = append(out, keys[i])
		}
	}
	return out, nil
}

func (r *RedisSeen) Mark(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, k := range keys {
		pipe.Set(ctx, r.prefix+k, 1, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seen mark: %w", err)
	}
	return nil
}

func (r *RedisSeen) Close() error { return r.rdb.Close() }

package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a shared Redis instance. Values are JSON-encoded
// and expiry is delegated to Redis TTLs; capacity bounding is left to the
// server's maxmemory policy.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedis connects to addr and returns a Redis cache scoped to prefix. The
// connection is verified with a ping so a misconfigured address surfaces at
// startup rather than on first lookup.
func NewRedis[V any](ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*Redis[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis[V]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

func (r *Redis[V]) key(k string) string { return r.prefix + ":" + k }

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		r.logger.Printf("corrupt cache entry %s: %v", key, err)
		return zero, false
	}
	return v, true
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Printf("marshal cache entry %s: %v", key, err)
		return
	}
	if err := r.client.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		r.logger.Printf("set cache entry %s: %v", key, err)
	}
}

// Clear removes every entry under this cache's prefix.
func (r *Redis[V]) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.Printf("clear: %v", err)
			return
		}
	}
}

// Size counts entries under this cache's prefix.
func (r *Redis[V]) Size(ctx context.Context) int {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

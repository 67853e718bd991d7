package persist

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis keeps snapshots in a Redis instance. Values never expire: a
// snapshot is a fallback for the next session, not a cache.
type Redis struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedis(redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 3

	client := redis.NewClient(opt)
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client, ctx: ctx}, nil
}

func (r *Redis) Set(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[PERSIST] marshal %s: %v", key, err)
		return
	}
	if err := r.client.Set(r.ctx, key, data, 0).Err(); err != nil {
		log.Printf("[PERSIST] redis set %s: %v", key, err)
	}
}

func (r *Redis) Get(key string, dest interface{}) bool {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

func (r *Redis) Close() {
	r.client.Close()
}

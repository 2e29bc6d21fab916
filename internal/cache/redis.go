package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siteqa/internal/model"
)

// DefaultRedisPrefix namespaces answer keys.
const DefaultRedisPrefix = "siteqa:answer:"

// Redis shares answers across instances. Expiry is delegated to Redis TTLs.
type Redis struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache. An empty prefix uses
// DefaultRedisPrefix; a non-positive ttl uses DefaultTTL.
func NewRedis(client goredis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Get loads and decodes the entry for key.
func (r *Redis) Get(ctx context.Context, key string) (*model.Response, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, eris.Wrap(err, "cache: decode entry")
	}
	return clone(&e.Payload), true, nil
}

// Set encodes resp and stores it with the cache TTL.
func (r *Redis) Set(ctx context.Context, key string, resp *model.Response) error {
	data, err := json.Marshal(Entry{Key: key, Payload: *resp, StoredAt: time.Now().UTC()})
	if err != nil {
		return eris.Wrap(err, "cache: encode entry")
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}

// Delete evicts key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return eris.Wrap(err, "cache: redis del")
	}
	return nil
}

package weather

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/harman-mundh/localcommunity/core/registry"
)

// RegistryCache keeps forecasts in the registry table of the database
type RegistryCache struct {
	accessor registry.Accessor
}

// NewRegistryCache returns a cache storing forecasts under the "weather" prefix
func NewRegistryCache(r registry.Registry) *RegistryCache {
	return &RegistryCache{accessor: r.Accessor("weather")}
}

// Get implements Cache
func (c *RegistryCache) Get(ctx context.Context, key string) (json.RawMessage, time.Time, error) {
	var forecast json.RawMessage
	timestamp, err := c.accessor.Read(ctx, key, &forecast)
	return forecast, timestamp, err
}

// Put implements Cache
func (c *RegistryCache) Put(ctx context.Context, key string, forecast json.RawMessage) error {
	return c.accessor.Write(ctx, key, forecast)
}

// entry is the value stored by the redis and memory caches
type entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Forecast  json.RawMessage `json:"forecast"`
}

// RedisCache keeps forecasts in redis. Entries expire after TTL, which should
// be at least the freshness window of the service.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCache returns a redis backed cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "weather:", ttl: ttl, now: time.Now}
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string) (json.RawMessage, time.Time, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.client.Del(ctx, c.prefix+key)
		return nil, time.Time{}, nil
	}
	return e.Forecast, e.Timestamp, nil
}

// Put implements Cache
func (c *RedisCache) Put(ctx context.Context, key string, forecast json.RawMessage) error {
	data, err := json.Marshal(entry{Timestamp: c.now().UTC(), Forecast: forecast})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// MemoryCache keeps forecasts in process. Used when neither the database
// registry nor redis should hold them, for example in tests.
type MemoryCache struct {
	entries *lru.LRU[string, entry]
	now     func() time.Time
}

// NewMemoryCache returns an in-process cache holding up to size locations
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: lru.NewLRU[string, entry](size, nil, ttl), now: time.Now}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, key string) (json.RawMessage, time.Time, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, time.Time{}, nil
	}
	return e.Forecast, e.Timestamp, nil
}

// Put implements Cache
func (c *MemoryCache) Put(_ context.Context, key string, forecast json.RawMessage) error {
	c.entries.Add(key, entry{Timestamp: c.now(), Forecast: forecast})
	return nil
}

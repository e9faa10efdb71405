package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Versioned caches JSON values under a per-scope version. Bumping a scope
// orphans every key built from the previous version; the TTL reclaims them.
type Versioned struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewVersioned builds a cache whose keys start with prefix.
func NewVersioned(client *redis.Client, prefix string, ttl time.Duration) *Versioned {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Versioned{client: client, prefix: prefix, ttl: ttl}
}

func (c *Versioned) versionKey(scope string) string {
	return c.prefix + ":ver:" + scope
}

// Version returns the scope's current version; a missing counter reads as 0.
func (c *Versioned) Version(ctx context.Context, scope string) (int64, error) {
	ver, err := c.client.Get(ctx, c.versionKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Bump invalidates every cached value of scope.
func (c *Versioned) Bump(ctx context.Context, scope string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(scope)).Err()
}

// FetchJSON decodes the cached value for (scope, key) into dest, or runs
// loader and stores its result. Redis failures fall through to loader.
func (c *Versioned) FetchJSON(ctx context.Context, scope, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, loader, dest, nil)
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return load(ctx, loader, dest, nil)
	}
	full := fmt.Sprintf("%s:%s:%d:%s", c.prefix, scope, ver, key)
	payload, err := c.client.Get(ctx, full).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return load(ctx, loader, dest, nil)
	}
	return load(ctx, loader, dest, func(raw []byte) {
		_ = c.client.Set(ctx, full, raw, c.ttl).Err()
	})
}

func load(ctx context.Context, loader func(context.Context) (any, error), dest any, store func([]byte)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if store != nil {
		store(raw)
	}
	return json.Unmarshal(raw, dest)
}

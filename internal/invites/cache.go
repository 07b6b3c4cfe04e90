package invites

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps successful invite lookups in redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type cachedInvite struct {
	GuildID   string     `json:"guild_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisCache{client: client, prefix: "promo:invite:"}, nil
}

func (c *RedisCache) key(code string) string { return c.prefix + code }

func (c *RedisCache) Get(ctx context.Context, code string) (Metadata, bool, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}

	var cached cachedInvite
	if err := json.Unmarshal(data, &cached); err != nil {
		return Metadata{}, false, err
	}
	return Metadata{GuildID: cached.GuildID, ExpiresAt: cached.ExpiresAt}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, code string, meta Metadata, ttl time.Duration) error {
	data, err := json.Marshal(cachedInvite{GuildID: meta.GuildID, ExpiresAt: meta.ExpiresAt})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(code), data, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

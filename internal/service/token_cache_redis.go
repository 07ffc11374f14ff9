package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenValidationCache shares memoized validations across replicas.
// Raw tokens are hashed before use as keys so a Redis dump never leaks
// usable credentials.
type RedisTokenValidationCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenValidationCache(client redis.UniversalClient, prefix string) *RedisTokenValidationCache {
	if prefix == "" {
		prefix = "token_validation_cache"
	}
	return &RedisTokenValidationCache{client: client, prefix: prefix}
}

func (c *RedisTokenValidationCache) Get(ctx context.Context, token string) (*TokenValidation, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(token)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v TokenValidation
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

func (c *RedisTokenValidationCache) Set(ctx context.Context, token string, v *TokenValidation, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(token), raw, ttl).Err()
}

func (c *RedisTokenValidationCache) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s:%s", c.prefix, hex.EncodeToString(sum[:]))
}

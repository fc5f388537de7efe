package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores configs in a directly reachable Redis using the same keys and
// serialization as the REST backend, so a deployment can switch protocols
// without migrating data.
type Redis struct {
	Client *redis.Client
}

// Get loads and deserializes the config for a code. Unknown keys and
// malformed stored values both read as a miss.
func (r Redis) Get(ctx context.Context, code string) (*CodeConfig, error) {
	if r.Client == nil {
		return nil, errors.New("redis store not configured")
	}
	raw, err := r.Client.Get(ctx, Key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var cfg CodeConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, nil
	}
	return &cfg, nil
}

// Set serializes and writes the config. No TTL: codes do not expire.
func (r Redis) Set(ctx context.Context, code string, cfg *CodeConfig) error {
	if r.Client == nil {
		return errors.New("redis store not configured")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := r.Client.Set(ctx, Key(code), string(raw), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

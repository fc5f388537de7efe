// Package store persists the mapping from short redemption codes to their
// checkout configuration. A composite remote-with-fallback store is the
// production shape; the in-process store exists for local development and
// loses all state on restart.
package store

import (
	"context"
	"time"
)

// keyPrefix namespaces code entries inside the shared key space.
const keyPrefix = "code:"

// CodeConfig is the persisted configuration for a redemption code. Field
// names form the serialization contract shared by every backend.
type CodeConfig struct {
	Amount              float64 `json:"amount"`
	Product             string  `json:"product"`
	Currency            string  `json:"currency"`
	AllowAmountOverride bool    `json:"allow_amount_override"`
	Token               string  `json:"token,omitempty"`
	UsageCount          int64   `json:"usage_count"`
	CreatedAt           int64   `json:"created_at"`
	LastUsedAt          int64   `json:"last_used_at,omitempty"`
}

// Touch records a successful redemption. The counter is telemetry only and
// deliberately not a concurrency-safe consumption lock.
func (c *CodeConfig) Touch(now time.Time) {
	c.UsageCount++
	c.LastUsedAt = now.UnixMilli()
}

// Store reads and writes code configurations. Get returns (nil, nil) when the
// code is unknown; errors are reserved for transport-level failures.
type Store interface {
	Get(ctx context.Context, code string) (*CodeConfig, error)
	Set(ctx context.Context, code string, cfg *CodeConfig) error
}

// Key returns the namespaced storage key for a code.
func Key(code string) string {
	return keyPrefix + code
}

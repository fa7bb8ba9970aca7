package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DedupTTL bounds how long a processed callback is remembered.
const DedupTTL = 24 * time.Hour

// Dedup claims keys once. It backs payment callback idempotency.
type Dedup struct {
	c   *Client
	ttl time.Duration
}

// NewDedup returns a Dedup. ttl <= 0 uses DedupTTL.
func NewDedup(c *Client, ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = DedupTTL
	}
	return &Dedup{c: c, ttl: ttl}
}

// Claim returns true when the key was not seen before.
func (d *Dedup) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("dedup key is required")
	}
	ok, err := d.c.store.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Forget releases a claim so the callback can be processed again.
func (d *Dedup) Forget(ctx context.Context, key string) error {
	return d.c.store.Del(ctx, key).Err()
}

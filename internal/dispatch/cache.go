package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStalePreview is returned when a dispatch is attempted for filters whose
// preview was never generated, expired, or was invalidated by a filter change.
var ErrStalePreview = errors.New("dispatch: no fresh preview for these filters; regenerate the preview first")

// Cache stores generated previews in Redis keyed by the filter fingerprint.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a preview cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func previewKey(fingerprint string) string {
	return "preview:" + fingerprint
}

// Put stores a preview under its fingerprint.
func (c *Cache) Put(ctx context.Context, p *Preview) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("dispatch: encode preview: %w", err)
	}
	if err := c.client.Set(ctx, previewKey(p.Fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("dispatch: cache preview: %w", err)
	}
	return nil
}

// Get fetches the preview for a filter fingerprint, returning ErrStalePreview
// when absent or expired.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*Preview, error) {
	payload, err := c.client.Get(ctx, previewKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStalePreview
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: read preview cache: %w", err)
	}
	var p Preview
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("dispatch: decode cached preview: %w", err)
	}
	return &p, nil
}

// Invalidate drops a cached preview, used after a successful dispatch so the
// same snapshot cannot be dispatched twice.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.client.Del(ctx, previewKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("dispatch: invalidate preview: %w", err)
	}
	return nil
}

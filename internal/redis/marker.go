package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker records short-lived "already seen" flags for event deduplication.
type Marker struct {
	client *redis.Client
}

func NewMarker(client *redis.Client) *Marker {
	return &Marker{client: client}
}

// MarkOnce sets key if it is absent and reports whether this call set it.
// A false result means another delivery of the same event got there first.
func (m *Marker) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set marker %s: %w", key, err)
	}
	return ok, nil
}

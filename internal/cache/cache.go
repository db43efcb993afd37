package cache

import (
	"context"
	"time"
)

// BytesCache is the shared, read-mostly cache behind the geo-code
// resolver, the token manager and the current-shipment lookups.
// Last write wins; callers tolerate redundant refreshes.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

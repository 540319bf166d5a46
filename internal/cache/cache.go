// Package cache stores short-lived derived data (file listings, thumbnails)
// in Redis when configured and in process memory otherwise.
package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache is a byte-value store with per-key expiry. A zero ttl means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	ListKey         = "files:list"
	thumbnailPrefix = "thumb:"
)

// ThumbnailKey is the cache key of a file's thumbnail at the given size.
func ThumbnailKey(storageID string, side int) string {
	return thumbnailPrefix + storageID + ":" + strconv.Itoa(side)
}

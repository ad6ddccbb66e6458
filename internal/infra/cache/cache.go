package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"docconv/internal/infra/logging"
)

const keyPrefix = "pdfcache:"

// PDFCache stores converted PDFs in redis keyed by a digest of the source bytes.
// A nil *PDFCache is a valid, disabled cache.
type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache on rdb. A nil client yields a nil (disabled) cache.
func New(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// Key computes the cache key of a source document.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached PDF for key. A miss returns (nil, nil).
func (c *PDFCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, err
	}
	logging.Info("PDF cache hit", "key", key)
	return data, nil
}

// Set stores data under key. Failures are logged and otherwise ignored.
func (c *PDFCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}

package descriptor

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheStats reports decode-cache effectiveness.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// CachedCodec decorates a Codec with an expirable LRU over decoded modules.
// Entries are keyed by path, mtime and size, so an edited target file is a
// miss. Cached sets stay pristine: both stores and hits deep-clone, which
// keeps patcher mutations out of the cache.
type CachedCodec struct {
	inner  Codec
	cache  *lru.LRU[string, *Module]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedCodec wraps inner with an LRU of at most maxEntries modules,
// each expiring after ttl. A ttl of zero disables expiry.
func NewCachedCodec(inner Codec, maxEntries int, ttl time.Duration) *CachedCodec {
	if maxEntries < 1 {
		maxEntries = 16
	}
	return &CachedCodec{
		inner: inner,
		cache: lru.NewLRU[string, *Module](maxEntries, nil, ttl),
	}
}

// Decode returns a cached clone when the file is unchanged, otherwise decodes
// through the inner codec and caches the pristine result.
func (c *CachedCodec) Decode(path string) (*Module, error) {
	key, err := cacheKey(path)
	if err != nil {
		// Stat failed; let the inner codec produce the canonical error.
		return c.inner.Decode(path)
	}
	if m, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return m.Clone(), nil
	}
	c.misses.Add(1)
	m, err := c.inner.Decode(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, m.Clone())
	return m, nil
}

// Encode passes through to the inner codec.
func (c *CachedCodec) Encode(m *Module) ([]byte, error) {
	return c.inner.Encode(m)
}

// Purge drops all cached modules.
func (c *CachedCodec) Purge() {
	c.cache.Purge()
}

// Stats returns hit/miss counters and the current entry count.
func (c *CachedCodec) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
}

func cacheKey(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%d|%d", path, fi.ModTime().UnixNano(), fi.Size()), nil
}

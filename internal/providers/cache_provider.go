package providers

import (
	"rsd/internal/structures"
	"unsafe"

	"github.com/coocood/freecache"
)

// responseTTL is the default TTL for cached GET responses. Live state moves
// fast; a stale read older than this is not worth serving.
const responseTTL = 2

type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	SetTTL(key string, value []byte, ttlSeconds int)
}

type CacheProvider struct {
	cache *freecache.Cache
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Cache disabled")
		return &noopCache{}
	}

	sizeBytes := conf.Cache.Size * 1024 * 1024
	logger.Infof(TypeApp, "Cache initialized: %dMB", conf.Cache.Size)

	return &CacheProvider{
		cache: freecache.NewCache(sizeBytes),
	}
}

// unsafeStringToBytes converts string to []byte without allocation.
// Safe when the result is only read (not modified), which is the case
// for freecache: it copies keys internally.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key string, value []byte) {
	_ = c.cache.Set(unsafeStringToBytes(key), value, responseTTL)
}

func (c *CacheProvider) SetTTL(key string, value []byte, ttlSeconds int) {
	_ = c.cache.Set(unsafeStringToBytes(key), value, ttlSeconds)
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool)      { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)           {}
func (n *noopCache) SetTTL(_ string, _ []byte, _ int) {}

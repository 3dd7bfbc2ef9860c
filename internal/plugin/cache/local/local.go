// Package local is an in-process handle cache for single-replica deployments.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/model"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	"github.com/chirino/askbox/internal/security"
	"github.com/dgraph-io/ristretto/v2"
)

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registrycache.HandleCache, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil {
				return nil, fmt.Errorf("local cache: missing config")
			}
			return New(cfg.CacheLocalMaxEntries, cfg.CacheHandleTTL)
		},
	})
}

// New creates a cache holding at most maxEntries handles. Entries written
// with a zero ttl use defaultTTL.
func New(maxEntries int64, defaultTTL time.Duration) (*HandleCache, error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("local cache: max entries must be positive, got %d", maxEntries)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, model.Handle]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	return &HandleCache{cache: c, ttl: defaultTTL}, nil
}

// HandleCache is a bounded TTL cache of handle index entries.
type HandleCache struct {
	cache *ristretto.Cache[string, model.Handle]
	ttl   time.Duration
}

func (c *HandleCache) Available() bool { return true }

func (c *HandleCache) Get(_ context.Context, screenName string) (*model.Handle, error) {
	h, ok := c.cache.Get(screenName)
	security.RecordCacheLookup("local", ok)
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// Set admits handle. Admission is asynchronous, so a Get immediately after
// Set may still miss.
func (c *HandleCache) Set(_ context.Context, handle model.Handle, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.cache.SetWithTTL(handle.ScreenName, handle, 1, ttl)
	return nil
}

// Wait blocks until pending writes are applied.
func (c *HandleCache) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *HandleCache) Close() error {
	c.cache.Close()
	return nil
}

var _ registrycache.HandleCache = (*HandleCache)(nil)

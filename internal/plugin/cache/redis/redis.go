// Package redis shares the handle cache between replicas through Redis.
// Each handle is a hash under askbox:handle:<screenName>.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/model"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	"github.com/chirino/askbox/internal/security"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 10 * time.Minute
	keyPrefix  = "askbox:handle:"
)

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "redis",
		Loader: func(ctx context.Context) (registrycache.HandleCache, error) {
			cfg := config.FromContext(ctx)
			if cfg == nil || cfg.RedisURL == "" {
				return nil, errors.New("redis cache: ASKBOX_REDIS_URL is required")
			}
			return Dial(ctx, cfg.RedisURL, cfg.CacheHandleTTL)
		},
	})
}

// Dial connects to redisURL and checks the server answers. Handles written
// with a zero ttl expire after ttl, or ten minutes when ttl is not positive.
func Dial(ctx context.Context, redisURL string, ttl time.Duration) (*HandleCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &HandleCache{client: client, ttl: ttl}, nil
}

// HandleCache stores handle index entries as Redis hashes.
type HandleCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// cachedHandle is the hash layout of one entry.
type cachedHandle struct {
	UID         string `redis:"uid"`
	Email       string `redis:"email"`
	DisplayName string `redis:"displayName"`
	PhotoURL    string `redis:"photoURL"`
}

func (c *HandleCache) Available() bool { return true }

func (c *HandleCache) Get(ctx context.Context, screenName string) (*model.Handle, error) {
	res := c.client.HGetAll(ctx, keyPrefix+screenName)
	if err := res.Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, err
	}
	if len(res.Val()) == 0 {
		security.RecordCacheLookup("redis", false)
		return nil, nil
	}
	var entry cachedHandle
	if err := res.Scan(&entry); err != nil {
		return nil, fmt.Errorf("redis cache: decode %s: %w", screenName, err)
	}
	security.RecordCacheLookup("redis", true)
	return &model.Handle{
		ScreenName:  screenName,
		UID:         entry.UID,
		Email:       entry.Email,
		DisplayName: entry.DisplayName,
		PhotoURL:    entry.PhotoURL,
	}, nil
}

// Set writes the hash and its expiry in one MULTI block so a reader never
// sees an entry without a TTL.
func (c *HandleCache) Set(ctx context.Context, handle model.Handle, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	key := keyPrefix + handle.ScreenName
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, cachedHandle{
			UID:         handle.UID,
			Email:       handle.Email,
			DisplayName: handle.DisplayName,
			PhotoURL:    handle.PhotoURL,
		})
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// Close releases the connection pool.
func (c *HandleCache) Close() error {
	return c.client.Close()
}

var _ registrycache.HandleCache = (*HandleCache)(nil)

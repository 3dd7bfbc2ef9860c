package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/model"
)

// HandleCache caches handle index entries. Entries never change once written,
// so only positive lookups are stored.
type HandleCache interface {
	Available() bool
	Get(ctx context.Context, screenName string) (*model.Handle, error)
	Set(ctx context.Context, handle model.Handle, ttl time.Duration) error
	// Close releases the backend. The server calls it once on shutdown.
	Close() error
}

// Loader creates a cache from the config carried by ctx.
type Loader func(ctx context.Context) (HandleCache, error)

type Plugin struct {
	Name   string
	Loader Loader
}

var plugins = map[string]Loader{}

// Register adds a cache plugin. Registering a name twice replaces the loader.
func Register(p Plugin) {
	plugins[p.Name] = p.Loader
}

// Names returns the registered cache names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(plugins))
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	if l, ok := plugins[name]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}

// Open loads the named cache. The cache is optional, so an unknown name or a
// failing backend is logged and answered with Disabled.
func Open(ctx context.Context, name string) HandleCache {
	loader, err := Select(name)
	if err != nil {
		log.Warn("Cache not available", "cache", name, "err", err)
		return Disabled{}
	}
	c, err := loader(ctx)
	if err != nil {
		log.Warn("Failed to initialize cache", "cache", name, "err", err)
		return Disabled{}
	}
	return c
}

// Disabled is a HandleCache that stores nothing.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Get(context.Context, string) (*model.Handle, error) { return nil, nil }

func (Disabled) Set(context.Context, model.Handle, time.Duration) error { return nil }

func (Disabled) Close() error { return nil }

var _ HandleCache = Disabled{}

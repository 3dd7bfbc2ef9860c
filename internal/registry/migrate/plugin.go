package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
)

// Migrator creates or upgrades the schema of one store backend.
type Migrator interface {
	Name() string
	Migrate(ctx context.Context) error
}

// Plugin binds a Migrator to the store kind it prepares. Order breaks ties
// between migrators of the same store.
type Plugin struct {
	Store    string
	Order    int
	Migrator Migrator
}

var plugins []Plugin

// Register adds a migration plugin. Called from init() in store packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// RunAll runs, in Order, the migrators registered for the configured store
// kind. Nothing runs when the config disables migrations.
func RunAll(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("migrate: missing config in context")
	}
	if !cfg.DatastoreMigrateAtStart {
		log.Debug("Schema migrations disabled", "store", cfg.DatastoreType)
		return nil
	}

	selected := forStore(cfg.DatastoreType)
	if len(selected) == 0 {
		log.Warn("No migrations registered for store", "store", cfg.DatastoreType)
		return nil
	}
	for _, p := range selected {
		log.Info("Running migration", "name", p.Migrator.Name())
		if err := p.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", p.Migrator.Name(), err)
		}
	}
	return nil
}

func forStore(store string) []Plugin {
	var selected []Plugin
	for _, p := range plugins {
		if p.Store == store {
			selected = append(selected, p)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Order < selected[j].Order })
	return selected
}

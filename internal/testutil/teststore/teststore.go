// Package teststore opens a migrated throwaway SQLite store for unit tests.
package teststore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/plugin/store/sqlite"
	registrymigrate "github.com/chirino/askbox/internal/registry/migrate"
	registrystore "github.com/chirino/askbox/internal/registry/store"
)

// Config returns a testing-mode config pointing at a fresh SQLite file.
func Config(tb testing.TB) *config.Config {
	tb.Helper()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeTesting
	cfg.DatastoreType = "sqlite"
	cfg.DBURL = filepath.Join(tb.TempDir(), "askbox.db")
	return &cfg
}

// Open migrates and opens a SQLite store. The store is closed on cleanup.
func Open(tb testing.TB) (registrystore.Store, context.Context) {
	tb.Helper()
	_ = sqlite.ForceImport

	cfg := Config(tb)
	ctx := config.WithContext(context.Background(), cfg)
	if err := registrymigrate.RunAll(ctx); err != nil {
		tb.Fatalf("migrate sqlite store: %v", err)
	}

	loader, err := registrystore.Select("sqlite")
	if err != nil {
		tb.Fatalf("select sqlite store: %v", err)
	}
	store, err := loader(ctx)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close(context.Background()) })
	return store, ctx
}

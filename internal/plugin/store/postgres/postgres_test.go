package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/plugin/store/postgres"
	registrymigrate "github.com/chirino/askbox/internal/registry/migrate"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/testutil/containers"
	"github.com/chirino/askbox/internal/testutil/storetest"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	_ = postgres.ForceImport

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "postgres"
	cfg.DBURL = containers.Postgres(t)
	ctx := config.WithContext(context.Background(), &cfg)
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("postgres")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	storetest.Run(t, ctx, store)
}

func TestIsRetryable(t *testing.T) {
	for code, want := range map[string]bool{
		"40001": true,
		"40P01": true,
		"23505": true,
		"23503": false,
		"42P01": false,
	} {
		err := fmt.Errorf("insert message: %w", &pgconn.PgError{Code: code})
		require.Equal(t, want, postgres.IsRetryable(err), code)
	}
	require.False(t, postgres.IsRetryable(errors.New("boom")))
}

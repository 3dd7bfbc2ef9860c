// Package containers starts disposable backends for integration tests.
// Every helper skips the calling test under -short and terminates its
// container when the test finishes.
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const readyTimeout = 30 * time.Second

func skipShort(tb testing.TB, name string) {
	tb.Helper()
	if testing.Short() {
		tb.Skipf("skipping %s container test in short mode", name)
	}
}

func terminateOnCleanup(tb testing.TB, name string, c testcontainers.Container) {
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := c.Terminate(ctx); err != nil {
			tb.Errorf("terminate %s container: %v", name, err)
		}
	})
}

// Postgres starts Postgres with an empty askbox database and returns its DSN.
func Postgres(tb testing.TB) string {
	tb.Helper()
	skipShort(tb, "postgres")

	ctx := context.Background()
	c, err := postgres.Run(ctx, "postgres:18",
		postgres.WithDatabase("askbox"),
		postgres.WithUsername("askbox"),
		postgres.WithPassword("askbox"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				// The first "ready" line is the init-time server.
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		tb.Fatalf("start postgres container: %v", err)
	}
	terminateOnCleanup(tb, "postgres", c)

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tb.Fatalf("build postgres connection string: %v", err)
	}
	if err := retry(ctx, func(ctx context.Context) error {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer conn.Close(ctx)
		return conn.Ping(ctx)
	}); err != nil {
		tb.Fatalf("postgres is not accepting connections: %v", err)
	}
	return dsn
}

// Mongo starts a single-node replica set, which transactions require, and
// returns its connection URI.
func Mongo(tb testing.TB) string {
	tb.Helper()
	skipShort(tb, "mongodb")

	ctx := context.Background()
	c, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	if err != nil {
		tb.Fatalf("start mongodb container: %v", err)
	}
	terminateOnCleanup(tb, "mongodb", c)

	uri, err := c.ConnectionString(ctx)
	if err != nil {
		tb.Fatalf("build mongodb connection string: %v", err)
	}
	return uri
}

// Redis starts Redis and returns a redis:// URL that answers PING.
func Redis(tb testing.TB) string {
	tb.Helper()
	skipShort(tb, "redis")

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		tb.Fatalf("start redis container: %v", err)
	}
	terminateOnCleanup(tb, "redis", c)

	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		tb.Fatalf("get redis endpoint: %v", err)
	}
	if err := retry(ctx, func(ctx context.Context) error {
		opts, err := redis.ParseURL(endpoint)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()
		return client.Ping(ctx).Err()
	}); err != nil {
		tb.Fatalf("redis is not answering: %v", err)
	}
	return endpoint
}

// FlushRedis empties the database selected by redisURL. An empty URL is a
// no-op.
func FlushRedis(ctx context.Context, redisURL string) error {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	if err := client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flush redis: %w", err)
	}
	return nil
}

// retry calls fn until it succeeds or readyTimeout passes.
func retry(ctx context.Context, fn func(ctx context.Context) error) error {
	deadline := time.Now().Add(readyTimeout)
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
}

package config

import (
	"context"
	"time"
)

// ListenerConfig holds the network/TLS settings for a single listener (main or management).
type ListenerConfig struct {
	Port              int
	EnablePlainText   bool
	EnableTLS         bool
	TLSCertFile       string
	TLSKeyFile        string
	ReadHeaderTimeout time.Duration
}

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for askbox.
type Config struct {
	// Mode controls security behavior: "prod" (default) or "testing".
	// In testing mode an unsigned bearer token is taken as the caller's uid.
	Mode string

	// Database
	DBURL string
	// DBName selects the MongoDB database.
	DBName string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// Datastore backend type
	DatastoreType string // "postgres", "mongo", or "sqlite"

	// Number of times a transaction is retried after a write conflict.
	TxMaxRetries int

	// Redis
	RedisURL string

	// Cache backend type
	CacheType string // "redis", "local" or "none"

	// How long resolved handles stay cached.
	CacheHandleTTL time.Duration

	// CacheLocalMaxEntries bounds the in-process handle cache.
	CacheLocalMaxEntries int64

	// OIDC
	OIDCIssuer       string
	OIDCDiscoveryURL string // Internal URL for OIDC discovery (when issuer URL is not reachable)
	OIDCClientID     string // Expected audience; empty skips the audience check.

	// JWTSecret enables HS256 bearer tokens signed with a shared secret.
	JWTSecret string

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Server
	Listener           ListenerConfig
	ManagementListener ListenerConfig
	// ManagementListenerEnabled is true when --management-port was explicitly provided.
	// When false, management endpoints are served on the main port.
	ManagementListenerEnabled bool
	// ManagementAccessLog enables HTTP access logging for /health, /ready and /metrics.
	ManagementAccessLog bool
	CORSEnabled         bool
	CORSOrigins         string

	// Body size limit (bytes)
	MaxBodySize int64

	// DrainTimeout bounds how long shutdown waits for in-flight requests.
	DrainTimeout time.Duration

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
	// StrictPageTotals reports the real totalPages for out-of-range pages
	// instead of 0.
	StrictPageTotals bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DBName:                  "askbox",
		DatastoreType:           "postgres",
		DatastoreMigrateAtStart: true,
		TxMaxRetries:            5,
		CacheType:               "none",
		CacheHandleTTL:          10 * time.Minute,
		CacheLocalMaxEntries:    100_000,
		MetricsLabels:           "service=askbox",
		Listener: ListenerConfig{
			Port:              8080,
			EnablePlainText:   true,
			EnableTLS:         true,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ManagementListener: ListenerConfig{
			EnablePlainText: true,
			EnableTLS:       true,
		},
		MaxBodySize:     1024 * 1024,
		DrainTimeout:    30 * time.Second,
		DBMaxOpenConns:  25,
		DBMaxIdleConns:  5,
		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
}

// ClampPageSize applies the configured page size bounds to a requested size.
func (c *Config) ClampPageSize(size int) int {
	if c == nil {
		return size
	}
	if c.MaxPageSize > 0 && size > c.MaxPageSize {
		return c.MaxPageSize
	}
	return size
}

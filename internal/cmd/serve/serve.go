package serve

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/config"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	// Backends and management routes register themselves in init().
	_ "github.com/chirino/askbox/internal/plugin/cache/local"
	_ "github.com/chirino/askbox/internal/plugin/cache/noop"
	_ "github.com/chirino/askbox/internal/plugin/cache/redis"
	_ "github.com/chirino/askbox/internal/plugin/route/system"
	_ "github.com/chirino/askbox/internal/plugin/store/mongo"
	_ "github.com/chirino/askbox/internal/plugin/store/postgres"
	_ "github.com/chirino/askbox/internal/plugin/store/sqlite"
)

const (
	catServer     = "Server:"
	catListener   = "Network Listener:"
	catManagement = "Management Network Listener:"
	catDatabase   = "Database:"
	catCache      = "Cache:"
	catMessages   = "Messages:"
	catAuth       = "Authorization:"
	catMonitoring = "Monitoring:"
)

// env maps a flag name to its ASKBOX_ environment variable.
func env(flag string) cli.ValueSourceChain {
	return cli.EnvVars("ASKBOX_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_")))
}

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the askbox HTTP server",
		Flags: flags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			cfg.ManagementListener.ReadHeaderTimeout = cfg.Listener.ReadHeaderTimeout
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config) []cli.Flag {
	str := func(name, category, usage string, dest *string) *cli.StringFlag {
		return &cli.StringFlag{Name: name, Category: category, Sources: env(name), Destination: dest, Value: *dest, Usage: usage}
	}
	integer := func(name, category, usage string, dest *int) *cli.IntFlag {
		return &cli.IntFlag{Name: name, Category: category, Sources: env(name), Destination: dest, Value: *dest, Usage: usage}
	}
	boolean := func(name, category, usage string, dest *bool) *cli.BoolFlag {
		return &cli.BoolFlag{Name: name, Category: category, Sources: env(name), Destination: dest, Value: *dest, Usage: usage}
	}
	duration := func(name, category, usage string, dest *time.Duration) *cli.DurationFlag {
		return &cli.DurationFlag{Name: name, Category: category, Sources: env(name), Destination: dest, Value: *dest, Usage: usage}
	}

	return []cli.Flag{
		str("mode", catServer, "Security mode (prod|testing); testing accepts a raw uid as the deny token", &cfg.Mode),
		str("tls-cert-file", catServer, "TLS certificate file", &cfg.Listener.TLSCertFile),
		str("tls-key-file", catServer, "TLS private key file", &cfg.Listener.TLSKeyFile),
		duration("read-header-timeout", catServer, "HTTP read header timeout", &cfg.Listener.ReadHeaderTimeout),
		duration("drain-timeout", catServer, "How long shutdown waits for in-flight requests", &cfg.DrainTimeout),
		boolean("management-access-log", catServer, "Log requests to /health, /ready and /metrics", &cfg.ManagementAccessLog),

		integer("port", catListener, "HTTP server port", &cfg.Listener.Port),
		boolean("plain-text", catListener, "Enable plaintext HTTP/1.1 + h2c", &cfg.Listener.EnablePlainText),
		boolean("tls", catListener, "Enable TLS HTTP/1.1 + HTTP/2 on the same port", &cfg.Listener.EnableTLS),

		integer("management-port", catManagement, "Dedicated port for health and metrics (0 = OS-assigned); when unset they are served on the main port", &cfg.ManagementListener.Port),
		boolean("management-plain-text", catManagement, "Enable plaintext HTTP for the management server", &cfg.ManagementListener.EnablePlainText),
		boolean("management-tls", catManagement, "Enable TLS for the management server", &cfg.ManagementListener.EnableTLS),

		str("db-kind", catDatabase, "Backend store ("+strings.Join(registrystore.Names(), "|")+")", &cfg.DatastoreType),
		str("db-url", catDatabase, "Database connection URL (a file path for sqlite)", &cfg.DBURL),
		integer("db-max-open-conns", catDatabase, "Maximum number of open database connections", &cfg.DBMaxOpenConns),
		integer("db-max-idle-conns", catDatabase, "Maximum number of idle database connections", &cfg.DBMaxIdleConns),

		str("cache-kind", catCache, "Handle cache backend ("+strings.Join(registrycache.Names(), "|")+")", &cfg.CacheType),
		str("redis-url", catCache, "Redis connection URL", &cfg.RedisURL),

		integer("messages-max-page-size", catMessages, "Upper bound applied to the size parameter of messages.list (0 = unbounded)", &cfg.MaxPageSize),
		boolean("messages-strict-page-totals", catMessages, "Report the real totalPages for pages past the end instead of 0", &cfg.StrictPageTotals),

		str("oidc-issuer", catAuth, "OIDC issuer URL, e.g. https://securetoken.google.com/<project> (enables OIDC auth)", &cfg.OIDCIssuer),
		str("oidc-discovery-url", catAuth, "OIDC discovery URL when the issuer is not directly reachable", &cfg.OIDCDiscoveryURL),
		str("auth-jwt-secret", catAuth, "Shared secret for HS256 bearer tokens", &cfg.JWTSecret),

		str("metrics-labels", catMonitoring, "Comma-separated key=value constant labels for every Prometheus metric; supports ${VAR} expansion", &cfg.MetricsLabels),
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down", "drainTimeout", cfg.DrainTimeout)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBodySize > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}

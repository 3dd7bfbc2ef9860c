package serve

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/askbox/internal/apierror"
	"github.com/chirino/askbox/internal/config"
	"github.com/chirino/askbox/internal/members"
	"github.com/chirino/askbox/internal/messages"
	routemembers "github.com/chirino/askbox/internal/plugin/route/members"
	routemessages "github.com/chirino/askbox/internal/plugin/route/messages"
	routesystem "github.com/chirino/askbox/internal/plugin/route/system"
	storemetrics "github.com/chirino/askbox/internal/plugin/store/metrics"
	registrycache "github.com/chirino/askbox/internal/registry/cache"
	registrymigrate "github.com/chirino/askbox/internal/registry/migrate"
	registryroute "github.com/chirino/askbox/internal/registry/route"
	registrystore "github.com/chirino/askbox/internal/registry/store"
	"github.com/chirino/askbox/internal/security"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config     *config.Config
	Store      registrystore.Store
	Cache      registrycache.HandleCache
	Router     *gin.Engine
	Running    *Listener
	Management *Listener
}

// Shutdown drains in-flight requests, then closes the store and the cache.
func (s *Server) Shutdown(ctx context.Context) error {
	routesystem.MarkDraining()
	if s.Management != nil {
		_ = s.Management.Close(ctx)
	}
	err := s.Running.Close(ctx)
	if closeErr := s.Store.Close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := s.Cache.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// StartServer initializes all subsystems and starts the HTTP listener.
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting askbox",
		"httpPort", cfg.Listener.Port,
		"db", cfg.DatastoreType,
		"cache", cfg.CacheType,
		"mode", cfg.Mode,
	)
	if cfg.Mode == config.ModeTesting {
		log.Warn("Testing mode: raw uid tokens are accepted on messages.deny")
	}

	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	handleCache := registrycache.Open(ctx, cfg.CacheType)

	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		_ = handleCache.Close()
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		_ = handleCache.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)
	closeBackends := func() {
		_ = store.Close(ctx)
		_ = handleCache.Close()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	apierror.Install(router)
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	for _, loader := range registryroute.Loaders(registryroute.RouteTypeMain) {
		if err := loader(ctx, router); err != nil {
			closeBackends()
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	registry := members.NewRegistry(store, handleCache, cfg.CacheHandleTTL)
	ledger := messages.NewLedger(store, messages.WithStrictPageTotals(cfg.StrictPageTotals))
	auth := security.AuthMiddleware(security.NewTokenResolver(cfg))

	routemembers.MountRoutes(router, registry)
	routemessages.MountRoutes(router, ledger, cfg, auth)

	// Management routes go on their own listener when --management-port is
	// set, otherwise on the main router.
	var management *Listener
	if cfg.ManagementListenerEnabled {
		management, err = startManagementServer(ctx, cfg)
		if err != nil {
			closeBackends()
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
		log.Info("Management server listening", "addr", management.Addr)
	} else if err := mountManagementRoutes(ctx, router); err != nil {
		closeBackends()
		return nil, err
	}

	running, err := StartListener("main", cfg.Listener, router)
	if err != nil {
		if management != nil {
			_ = management.Close(ctx)
		}
		closeBackends()
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	routesystem.MarkReady()
	return &Server{
		Config:     cfg,
		Store:      store,
		Cache:      handleCache,
		Router:     router,
		Running:    running,
		Management: management,
	}, nil
}

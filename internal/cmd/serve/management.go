package serve

import (
	"context"
	"fmt"

	"github.com/chirino/askbox/internal/config"
	registryroute "github.com/chirino/askbox/internal/registry/route"
	"github.com/chirino/askbox/internal/security"
	"github.com/gin-gonic/gin"
)

// mountManagementRoutes attaches health, readiness and metrics to r.
func mountManagementRoutes(ctx context.Context, r *gin.Engine) error {
	for _, loader := range registryroute.Loaders(registryroute.RouteTypeManagement) {
		if err := loader(ctx, r); err != nil {
			return fmt.Errorf("failed to load management routes: %w", err)
		}
	}
	return nil
}

// startManagementServer serves the management routes on their own port. The
// listener shares the main listener's TLS certificate.
func startManagementServer(ctx context.Context, cfg *config.Config) (*Listener, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	}
	if err := mountManagementRoutes(ctx, router); err != nil {
		return nil, err
	}

	lc := cfg.ManagementListener
	if !lc.EnablePlainText && !lc.EnableTLS {
		lc.EnablePlainText = true
	}
	lc.TLSCertFile = cfg.Listener.TLSCertFile
	lc.TLSKeyFile = cfg.Listener.TLSKeyFile
	return StartListener("management", lc, router)
}

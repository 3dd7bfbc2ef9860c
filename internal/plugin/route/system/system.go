package system

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	registryroute "github.com/chirino/askbox/internal/registry/route"
)

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

var state atomic.Int32

// MarkReady signals that StartServer has completed and traffic may be routed here.
func MarkReady() {
	state.Store(stateReady)
}

// MarkDraining flips readiness off while in-flight requests finish.
func MarkDraining() {
	state.Store(stateDraining)
}

func init() {
	registryroute.Register(registryroute.Plugin{
		Order:  0,
		Type:   registryroute.RouteTypeManagement,
		Loader: mount,
	})
}

func mount(_ context.Context, r *gin.Engine) error {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		switch state.Load() {
		case stateReady:
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
		case stateDraining:
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		}
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return nil
}

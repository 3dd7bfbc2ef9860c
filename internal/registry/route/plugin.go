package route

import (
	"context"
	"sort"

	"github.com/gin-gonic/gin"
)

// RouterLoader mounts routes on the gin engine. ctx carries the server config.
type RouterLoader func(ctx context.Context, r *gin.Engine) error

// RouteType distinguishes which listener a plugin's routes belong to.
type RouteType int

const (
	// RouteTypeMain registers routes on the main API listener.
	RouteTypeMain RouteType = iota
	// RouteTypeManagement registers health and metrics routes. Without a
	// dedicated management port these are mounted on the main listener.
	RouteTypeManagement
)

// Plugin is a route loader with an order for deterministic mount sequence.
type Plugin struct {
	Order  int
	Type   RouteType
	Loader RouterLoader
}

var plugins []Plugin

// Register adds a route plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Loaders returns the loaders of the given type in mount order.
func Loaders(t RouteType) []RouterLoader {
	matching := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.Type == t {
			matching = append(matching, p)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Order < matching[j].Order })

	loaders := make([]RouterLoader, len(matching))
	for i, p := range matching {
		loaders[i] = p.Loader
	}
	return loaders
}

package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRoute means no matching-engine instance serves the order's
// symbol. It is a target-level failure for the engine only, distinct
// from the engine being unreachable.
var ErrNoRoute = errors.New("no engine route for symbol")

// Downstream target names
const (
	TargetEngine    = "matching-engine"
	TargetPublisher = "market-data-publisher"
)

// Endpoint is a typed descriptor of a downstream target.
type Endpoint struct {
	Name string
	URL  string
}

// Router resolves downstream endpoints. Some deployments run one engine
// instance per traded symbol; the routing table maps symbol to engine
// base URL, with an optional catch-all instance for everything else.
type Router struct {
	engineRoutes  map[string]string
	defaultEngine string
	publisher     string
}

func NewRouter(engineRoutes map[string]string, defaultEngine, publisher string) *Router {
	routes := make(map[string]string, len(engineRoutes))
	for symbol, url := range engineRoutes {
		routes[strings.ToUpper(symbol)] = url
	}
	return &Router{
		engineRoutes:  routes,
		defaultEngine: defaultEngine,
		publisher:     publisher,
	}
}

// EngineFor returns the matching-engine endpoint responsible for the
// symbol, or ErrNoRoute when no instance serves it.
func (r *Router) EngineFor(symbol string) (Endpoint, error) {
	if url, ok := r.engineRoutes[strings.ToUpper(symbol)]; ok {
		return Endpoint{Name: TargetEngine, URL: url}, nil
	}
	if r.defaultEngine != "" {
		return Endpoint{Name: TargetEngine, URL: r.defaultEngine}, nil
	}
	return Endpoint{Name: TargetEngine}, fmt.Errorf("%w: %s", ErrNoRoute, symbol)
}

// Publisher returns the market-data publisher endpoint.
func (r *Router) Publisher() Endpoint {
	return Endpoint{Name: TargetPublisher, URL: r.publisher}
}

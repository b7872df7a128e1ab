// Package navigate moves the user between application routes
package navigate

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mcoot/arena-auth/internal/model"
)

// Navigator sends the user to a route
type Navigator interface {
	Navigate(ctx context.Context, route model.Route)
}

// History records every navigation. The last entry is the current route.
type History struct {
	mu     sync.RWMutex
	routes []model.Route
	out    io.Writer
}

// NewHistory creates an empty history. When out is non-nil each navigation
// is also printed to it.
func NewHistory(out io.Writer) *History {
	return &History{out: out}
}

func (h *History) Navigate(_ context.Context, route model.Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
	if h.out != nil {
		_, _ = fmt.Fprintf(h.out, "-> %s\n", route)
	}
}

// Current returns the latest route, or home if nothing navigated yet
func (h *History) Current() model.Route {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.routes) == 0 {
		return model.RouteHome
	}
	return h.routes[len(h.routes)-1]
}

// Routes returns every navigation in order
func (h *History) Routes() []model.Route {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Route(nil), h.routes...)
}

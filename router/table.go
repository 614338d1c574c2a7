// Package router implements the edge routing tier: an ordered prefix route
// table in front of a reverse proxy, with per-request upstream resolution.
package router

import (
	"strings"
	"sync"
)

// Resolver yields an upstream host:port for one forwarded request.
// Implementations may rotate across replicas; a static target returns
// the same address every time.
type Resolver interface {
	Resolve() (string, error)
}

// StaticTarget is a Resolver that always returns the same address
type StaticTarget string

// Resolve returns the fixed address
func (t StaticTarget) Resolve() (string, error) {
	return string(t), nil
}

// Route binds a path prefix to an upstream resolver
type Route struct {
	Prefix   string
	Resolver Resolver
}

// Table is an ordered route table matched by longest prefix. Routes are
// registered at startup; matching is read-only after that, but the lock
// keeps registration safe if wiring ever becomes dynamic.
type Table struct {
	mu     sync.RWMutex
	routes []Route
}

// NewTable creates an empty route table
func NewTable() *Table {
	return &Table{}
}

// Add registers a route. Prefixes are normalized to a leading slash.
func (t *Table) Add(prefix string, resolver Resolver) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, Route{Prefix: prefix, Resolver: resolver})
}

// Match returns the route with the longest prefix matching the path,
// or false when no route matches
func (t *Table) Match(path string) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best Route
	found := false
	for _, route := range t.routes {
		if strings.HasPrefix(path, route.Prefix) {
			if !found || len(route.Prefix) > len(best.Prefix) {
				best = route
				found = true
			}
		}
	}
	return best, found
}

// Len returns the number of registered routes
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

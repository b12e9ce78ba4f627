// Package route rewrites path-like entrypoints through a user-supplied
// route table with an unrouted-prefix exclusion list.
package route

import "strings"

// Result reports the outcome of a route lookup.
type Result struct {
	Entrypoint string
	Routed     bool
}

// Resolve rewrites pathname through routes unless an unrouted prefix
// matches. Matching against routes is exact-string only; no globs, no
// partial-prefix rewriting.
func Resolve(pathname string, routes map[string]string, unrouted []string) Result {
	for _, prefix := range unrouted {
		if strings.HasPrefix(pathname, prefix) {
			return Result{Entrypoint: pathname}
		}
	}
	if routes == nil {
		return Result{Entrypoint: pathname}
	}
	if target, ok := routes[pathname]; ok {
		return Result{Entrypoint: target, Routed: true}
	}
	return Result{Entrypoint: pathname}
}

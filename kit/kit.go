// Package kit holds the transport-agnostic endpoint plumbing: the
// Endpoint abstraction, middleware chaining, request-scoped context
// values, and the MCP tool adapter.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Transports (MCP,
// HTTP) decode their wire format into a typed request, call the
// endpoint, and encode the response back.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

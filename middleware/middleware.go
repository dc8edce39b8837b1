// Package middleware provides the server-side dispatch interceptor
// chain: cross-cutting concerns (logging, rate limiting, retrying,
// timing out) wrap a dispatcher's HandlerFunc without either side
// knowing about the other.
package middleware

import (
	"context"

	"duplexrpc/methodid"
)

// HandlerFunc executes one dispatched call's raw argument payload and
// returns the raw result payload to send back.
type HandlerFunc func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error)

// Middleware wraps a HandlerFunc with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, applying them in the order given:
// the first middleware in the list is the outermost, running first on
// the way in and last on the way out.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
)

// RateLimitMiddleware builds a token-bucket rate limiter shared across
// every dispatched call, refilling at r calls/second up to burst tokens.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
			if !limiter.Allow() {
				return nil, rpcerr.WithCode(rpcerr.EFail, "rate limit exceeded")
			}
			return next(ctx, id, payload)
		}
	}
}

package middleware

import (
	"context"
	"time"

	"duplexrpc/methodid"
	"duplexrpc/rpcerr"
)

type timeoutResult struct {
	payload []byte
	err     error
}

// TimeOutMiddleware bounds next's execution to timeout, returning
// an rpcerr.EAbort-coded error if it runs long. The handler
// goroutine is not forcibly killed: it keeps running against the
// timed-out context and its result, if any, is discarded.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan timeoutResult, 1)
			go func() {
				result, err := next(ctx, id, payload)
				done <- timeoutResult{payload: result, err: err}
			}()

			select {
			case r := <-done:
				return r.payload, r.err
			case <-ctx.Done():
				return nil, rpcerr.WithCode(rpcerr.EAbort, "request timed out")
			}
		}
	}
}

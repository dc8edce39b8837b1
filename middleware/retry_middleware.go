package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"duplexrpc/methodid"
)

// Temporary is implemented by a handler error that knows whether it is
// worth retrying, mirroring the net.Error convention instead of matching
// substrings of an error's message.
type Temporary interface {
	Temporary() bool
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// RetryMiddleware re-invokes next up to maxRetries times, with an
// exponential backoff starting at baseDelay, as long as the error it
// returns is retryable per isRetryable.
func RetryMiddleware(logger *zap.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
			result, err := next(ctx, id, payload)
			for i := 0; i < maxRetries && err != nil; i++ {
				if !isRetryable(err) {
					return result, err
				}
				logger.Warn("retrying dispatched call",
					zap.String("methodID", id.String()), zap.Int("attempt", i+1), zap.Error(err))
				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				result, err = next(ctx, id, payload)
			}
			return result, err
		}
	}
}

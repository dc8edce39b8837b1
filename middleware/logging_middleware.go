package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"duplexrpc/methodid"
)

// LoggingMiddleware logs each dispatched call's method id and duration,
// and its error if any, at debug/warn level respectively.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, id methodid.MethodID, payload []byte) ([]byte, error) {
			start := time.Now()
			result, err := next(ctx, id, payload)
			duration := time.Since(start)
			if err != nil {
				logger.Warn("dispatch failed",
					zap.String("methodID", id.String()), zap.Duration("duration", duration), zap.Error(err))
			} else {
				logger.Debug("dispatch completed",
					zap.String("methodID", id.String()), zap.Duration("duration", duration))
			}
			return result, err
		}
	}
}

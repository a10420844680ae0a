package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/thunk/store"
)

// Logging returns middleware that logs each dispatch at debug level and
// failed dispatches at error level.
func Logging[S any](logger *slog.Logger) store.Middleware[S] {
	return func(api store.API[S]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				kind, actionType := kindOf(action)
				attrs := []any{slog.String("kind", kind)}
				if actionType != "" {
					attrs = append(attrs, slog.String("action_type", actionType))
				} else {
					attrs = append(attrs, slog.String("go_type", fmt.Sprintf("%T", action)))
				}

				logger.Debug("dispatch started", attrs...)

				start := time.Now()
				result, err := next(action)
				attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))

				if err != nil {
					logger.Error("dispatch failed", append(attrs, slog.String("error", err.Error()))...)
				} else {
					logger.Debug("dispatch completed", attrs...)
				}

				return result, err
			}
		}
	}
}

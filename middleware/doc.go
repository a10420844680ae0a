// Package middleware provides observability middleware for store.Store.
//
//   - [Logging] logs every dispatched value and failures through log/slog
//   - [Instrument] records Prometheus counters and latency histograms
//
// Both are pure pass-through: they never change the value returned by the
// rest of the chain. Install them outside the thunk middleware to observe
// deferred computations too, or inside it to see only plain actions:
//
//	store.WithMiddleware(
//	    middleware.Logging[State](logger),
//	    middleware.Instrument[State](metrics),
//	    thunk.New[State](),
//	)
package middleware

import (
	"reflect"

	"github.com/roach88/thunk/store"
)

// Kind labels for dispatched values.
const (
	KindRecord   = "record"
	KindDeferred = "deferred"
	KindOther    = "other" // neither an action nor a func, e.g. Dispatch(42)
)

func kindOf(action any) (kind, actionType string) {
	if a, ok := action.(store.Action); ok {
		return KindRecord, a.ActionType()
	}
	if v := reflect.ValueOf(action); v.Kind() == reflect.Func && !v.IsNil() {
		return KindDeferred, ""
	}
	return KindOther, ""
}

// Package store implements a small single-reducer state store with a
// middleware dispatch chain.
//
// A Store holds one immutable-by-convention snapshot of type S. Plain actions
// (values implementing [Action]) reach the reducer through the base
// dispatcher; everything else must be consumed by middleware first, or
// dispatch fails with a NOT_PLAIN_ACTION [Error].
//
// # Middleware
//
// A [Middleware] is a three-stage function:
//
//	func(api store.API[S]) func(next store.Dispatch) store.Dispatch
//
// Stage one receives the store facade (Dispatch re-enters the chain from the
// top, GetState reads the current snapshot). Stage two receives the rest of
// the chain. The returned Dispatch handles each action. Middleware passed to
// [WithMiddleware] are composed right-to-left, so the first one is outermost:
//
//	st, err := store.New(reducer, initial,
//	    store.WithMiddleware(logging, thunk.New[State](), recorder),
//	)
//	// logging → thunk → recorder → reducer
//
// Dispatching from stage one or stage two, while the chain is being built,
// fails with DISPATCH_DURING_CONSTRUCTION. Reducers may not dispatch.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Callers that share a store between
// goroutines must serialize Dispatch, GetState and Subscribe themselves.
package store

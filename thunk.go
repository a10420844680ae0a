package thunk

import "github.com/roach88/thunk/store"

// Func is a deferred computation. When dispatched through a thunk middleware
// it is called with the store's dispatch, its state getter and the
// middleware's extra argument, and its results are returned to the caller of
// Dispatch unchanged.
type Func[S, E any] func(dispatch store.Dispatch, getState store.GetState[S], extra E) (any, error)

// Interceptor is a thunk middleware whose extra argument has type any.
type Interceptor[S any] store.Middleware[S]

// Default is the interceptor for stores with state of type any. Deferred
// computations run through it receive a nil extra argument.
var Default = Interceptor[any](New[any]())

// New returns a thunk middleware without an extra argument. Deferred
// computations of type Func[S, any] receive nil as their third argument.
func New[S any]() store.Middleware[S] {
	return WithExtraArgument[S, any](nil)
}

// WithExtraArgument returns a thunk middleware that passes extra to every
// deferred computation it runs. Each call builds an independent middleware.
//
// An action is treated as deferred when it is a non-nil Func[S, E] or a
// non-nil unnamed func with the same signature. Everything else, nil funcs
// included, goes to next untouched.
func WithExtraArgument[S, E any](extra E) store.Middleware[S] {
	return func(api store.API[S]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				switch fn := action.(type) {
				case Func[S, E]:
					if fn != nil {
						return fn(api.Dispatch, api.GetState, extra)
					}
				case func(store.Dispatch, store.GetState[S], E) (any, error):
					if fn != nil {
						return fn(api.Dispatch, api.GetState, extra)
					}
				}
				return next(action)
			}
		}
	}
}

// Middleware returns the interceptor as a store.Middleware.
func (i Interceptor[S]) Middleware() store.Middleware[S] {
	return store.Middleware[S](i)
}

// WithExtraArgument builds a new, independent interceptor for the same state
// type that passes extra to deferred computations. The receiver is not
// modified.
func (i Interceptor[S]) WithExtraArgument(extra any) Interceptor[S] {
	return Interceptor[S](WithExtraArgument[S, any](extra))
}

// Package thunk lets a store's Dispatch accept deferred computations in
// addition to plain actions.
//
// A deferred computation is a [Func]. The thunk middleware calls it with the
// store's Dispatch, its GetState and an optional extra argument fixed when the
// middleware was built, and returns its result and error to the caller as-is.
// Any other value is passed to the next middleware unchanged. Exactly one of
// the two happens for every dispatched value.
//
//	st, err := store.New(reducer, State{},
//	    store.WithMiddleware(thunk.WithExtraArgument[State](client)),
//	)
//
//	fetchUser := thunk.Func[State, *Client](func(dispatch store.Dispatch, getState store.GetState[State], c *Client) (any, error) {
//	    u, err := c.User(getState().UserID)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return dispatch(store.NewRecord("user/loaded", map[string]any{"name": u.Name}))
//	})
//	_, err = st.Dispatch(fetchUser)
//
// Use [New] when no extra argument is needed, or [Default] for stores whose
// state type is any. [Interceptor.WithExtraArgument] derives an independent
// interceptor from Default with a different extra argument.
//
// The middleware keeps no state besides the extra argument, never creates or
// wraps errors, and does not recover panics. It runs synchronously; a
// computation that starts background work owns that work.
package thunk

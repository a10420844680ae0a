package store

// Compose folds middleware into one. The first middleware is the outermost:
// Compose(a, b, c) handles an action as a → b → c → next.
func Compose[S any](mws ...Middleware[S]) Middleware[S] {
	return func(api API[S]) func(next Dispatch) Dispatch {
		stages := make([]func(Dispatch) Dispatch, len(mws))
		for i, mw := range mws {
			stages[i] = mw(api)
		}

		return func(next Dispatch) Dispatch {
			d := next
			for i := len(stages) - 1; i >= 0; i-- {
				d = stages[i](d)
			}
			return d
		}
	}
}

// Chain wires mws around base using api as the facade and returns the
// resulting entry point.
func Chain[S any](api API[S], base Dispatch, mws ...Middleware[S]) Dispatch {
	if len(mws) == 0 {
		return base
	}
	return Compose(mws...)(api)(base)
}
